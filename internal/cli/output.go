package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Profile:
		o.printProfile(v)
	case LoginResult:
		_, _ = fmt.Fprintf(o.w, "Token: %s\n", v.Token)
	case HealthResult:
		_, _ = fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Profile response type (matches API)
type Profile struct {
	Username       string  `json:"username"`
	FullName       string  `json:"fullName"`
	PrivilegeLevel int     `json:"privilegeLevel"`
	Email          *string `json:"email"`
}

// LoginResult response type
type LoginResult struct {
	Token string `json:"token"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printProfile(p Profile) {
	_, _ = fmt.Fprintf(o.w, "Username: %s\n", p.Username)
	_, _ = fmt.Fprintf(o.w, "Full name: %s\n", p.FullName)
	_, _ = fmt.Fprintf(o.w, "Privilege level: %d\n", p.PrivilegeLevel)
	if p.Email != nil {
		_, _ = fmt.Fprintf(o.w, "Email: %s\n", *p.Email)
	}
}
