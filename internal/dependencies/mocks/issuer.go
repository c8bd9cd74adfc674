package mocks

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mcoot/accountsvc/internal/security/token"
)

// ErrIssuerFailure is returned by MockIssuer when FailNext is set
var ErrIssuerFailure = errors.New("mock issuer failure")

// MockIssuer is a mock implementation of token.Issuer for testing
type MockIssuer struct {
	mu sync.Mutex

	// Tokens is a queue of results to return from Issue
	Tokens []string
	index  int
	issued int

	// FailNext makes the next Issue call return ErrIssuerFailure
	FailNext bool
}

// Ensure MockIssuer implements Issuer
var _ token.Issuer = (*MockIssuer)(nil)

// NewMockIssuer creates a new MockIssuer
func NewMockIssuer() *MockIssuer {
	return &MockIssuer{}
}

// Issue returns the next queued token, or a sequential token once the queue is drained
func (m *MockIssuer) Issue() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext {
		m.FailNext = false
		return "", ErrIssuerFailure
	}
	m.issued++
	if m.index < len(m.Tokens) {
		result := m.Tokens[m.index]
		m.index++
		return result, nil
	}
	return fmt.Sprintf("token-%04d", m.issued), nil
}

// QueueTokens adds values to the token queue
func (m *MockIssuer) QueueTokens(values ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tokens = append(m.Tokens, values...)
}

// Issued returns how many tokens have been handed out
func (m *MockIssuer) Issued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}
