package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	err := NotFound("team member")
	assert.EqualError(t, err, "team member not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidState)

	wrapped := fmt.Errorf("record change: %w", InvalidState("insufficient material"))
	assert.ErrorIs(t, wrapped, ErrInvalidState)

	var ae *Error
	assert.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, "insufficient material", ae.Error())
}

func TestKindLabel(t *testing.T) {
	cases := map[string]error{
		"ok":               nil,
		"not_found":        NotFound("material"),
		"invalid_state":    InvalidState("x"),
		"invalid_argument": InvalidArgument("y"),
		"error":            errors.New("connection reset"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Kind(err))
	}
}
