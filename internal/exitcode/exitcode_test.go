package exitcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"plain", errors.New("boom"), Error},
		{"failed", Failed("boom"), Error},
		{"cancel", Cancel(), Cancelled},
		{"wrapped cancel", fmt.Errorf("ask: %w", Cancel()), Cancelled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromError(tc.err); got != tc.want {
				t.Fatalf("FromError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
