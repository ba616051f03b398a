package testutil

import (
	"strings"
	"testing"

	"github.com/cmuxiao/deepchat/internal/bridge"
)

// maxShown bounds how much output a failure message prints.
const maxShown = 2000

// AssertContains fails if output does not contain want.
func AssertContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Errorf("missing %q in output:\n%s", want, clip(output))
	}
}

// AssertContainsPlain is AssertContains on output with ANSI styling removed,
// for rendered views.
func AssertContainsPlain(t *testing.T, output, want string) {
	t.Helper()
	plain := StripANSI(output)
	if !strings.Contains(plain, want) {
		t.Errorf("missing %q in rendered output:\n%s", want, clip(plain))
	}
}

// AssertNotContains fails if output contains unwanted.
func AssertNotContains(t *testing.T, output, unwanted string) {
	t.Helper()
	if strings.Contains(output, unwanted) {
		t.Errorf("unexpected %q in output:\n%s", unwanted, clip(output))
	}
}

// AssertErrorText fails unless text is a relay error message: the error
// prefix exactly once, followed by a message containing cause.
func AssertErrorText(t *testing.T, text, cause string) {
	t.Helper()
	if !strings.HasPrefix(text, bridge.ErrorPrefix) {
		t.Errorf("error text %q does not start with %q", text, bridge.ErrorPrefix)
		return
	}
	rest := strings.TrimPrefix(text, bridge.ErrorPrefix)
	if strings.HasPrefix(rest, bridge.ErrorPrefix) {
		t.Errorf("error text %q repeats the prefix", text)
	}
	if !strings.Contains(rest, cause) {
		t.Errorf("error text %q does not mention %q", text, cause)
	}
}

func clip(s string) string {
	if len(s) <= maxShown {
		return s
	}
	return s[:maxShown] + "\n... [truncated]"
}
