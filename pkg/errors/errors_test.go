package errors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_MatchesInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("symbol", "symbol is required", ""), "analyze")

	assert.ErrorIs(t, err, ErrInvalidInput)
	var verr *ValidationError
	assert.True(t, As(err, &verr))
	assert.Equal(t, "symbol", verr.Field)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.NoError(t, m.ToError())

	m.Add(nil)
	m.Add(Wrap(ErrTimeout, "THYAO"))
	m.Add(Wrap(ErrNotFound, "ASELS"))

	err := m.ToError()
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "2 errors: THYAO: operation timeout; ASELS: resource not found", err.Error())
}

func TestCode(t *testing.T) {
	cases := map[string]error{
		"":               nil,
		"canceled":       Wrap(context.Canceled, "sweep"),
		"timeout":        context.DeadlineExceeded,
		"not_found":      ErrWorkerNotFound,
		"already_exists": ErrAlreadyExists,
		"rate_limited":   Wrapf(ErrRateLimitExceeded, "provider %s", "yahoo"),
		"invalid_input":  Newf("%w: bad side", ErrInvalidOrder),
		"unavailable":    ErrUnavailable,
		"internal":       New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Code(err), "error %v", err)
	}
	assert.Equal(t, "invalid_input", Code(NewValidationError("price", "must be positive", -1)))
}
