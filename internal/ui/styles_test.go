package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"deepseek-r1:70b-llama-distill", 12, "deepseek-..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tc := range tests {
		if got := Truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestFormatResult(t *testing.T) {
	s := NewStyles(&bytes.Buffer{})
	if got := s.FormatResult(true, "wrote config"); !strings.Contains(got, SuccessIcon) || !strings.HasSuffix(got, "wrote config") {
		t.Fatalf("success result=%q", got)
	}
	if got := s.FormatResult(false, "failed"); !strings.Contains(got, FailIcon) {
		t.Fatalf("fail result=%q", got)
	}
}
