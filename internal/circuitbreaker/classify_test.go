package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pnragg/service/internal/pnragg"
)

func TestClassifyOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Success},
		{"not_found", pnragg.ErrNotFound, Ignored},
		{"wrapped_not_found", fmt.Errorf("find trip: %w", pnragg.ErrNotFound), Ignored},
		{"deadline_exceeded", context.DeadlineExceeded, Failure},
		{"generic_error", errors.New("connection refused"), Failure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyOutcome(tt.err); got != tt.want {
				t.Errorf("ClassifyOutcome(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
