package circuitbreaker

import (
	"errors"

	"github.com/pnragg/service/internal/pnragg"
)

// ClassifyOutcome turns a fetch error into the three-valued Outcome a
// breaker records. A nil error is Success. The default "not found"
// predicate (pnragg.ErrNotFound) is Ignored — a business-logical absence,
// not a dependency failure. Everything else, including a context deadline
// exceeded, is Failure: a timeout is a failure for circuit-breaker
// accounting, never a reason to short-circuit the window.
func ClassifyOutcome(err error) Outcome {
	if err == nil {
		return Success
	}
	if errors.Is(err, pnragg.ErrNotFound) {
		return Ignored
	}
	return Failure
}
