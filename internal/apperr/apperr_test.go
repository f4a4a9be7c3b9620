package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("contract", "c1"), KindNotFound},
		{"validation", Validation("dayOfMonth", "must be between 1 and 31"), KindValidation},
		{"conflict", Conflict("contract is already cancelled"), KindConflict},
		{"concurrency", Concurrency(errors.New("stale"), "payment was modified"), KindConcurrency},
		{"wrapped", fmt.Errorf("renew: %w", Conflict("not active")), KindConflict},
		{"plain", errors.New("disk full"), KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("endDate", "must be after start date")
	assert.Equal(t, "endDate: must be after start date", err.Error())
	assert.Equal(t, "endDate", FieldOf(err))

	cause := errors.New("version 3 != 4")
	err = Concurrency(cause, "payment %s was modified", "p1")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "payment p1 was modified: version 3 != 4", err.Error())
}
