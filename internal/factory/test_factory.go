package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/accountsvc/internal/dependencies/mocks"
	"github.com/mcoot/accountsvc/internal/security/password"
	"github.com/mcoot/accountsvc/internal/storage/memory"
	"github.com/mcoot/accountsvc/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	MockIssuer *mocks.MockIssuer

	// MemoryStorage is the same store as App.Storage
	MemoryStorage *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies
// and the cheapest bcrypt cost
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockIssuer := mocks.NewMockIssuer()

	passwordCfg := password.DefaultConfig()
	passwordCfg.BcryptCost = bcrypt.MinCost
	hasher, err := password.New(passwordCfg)
	if err != nil {
		panic(err)
	}

	app := newWithDependencies(store, hasher, mockIssuer, mockClock, mockRandom, testutil.NopLogger())

	return &TestApp{
		App:           app,
		MockClock:     mockClock,
		MockRandom:    mockRandom,
		MockIssuer:    mockIssuer,
		MemoryStorage: store,
	}
}
