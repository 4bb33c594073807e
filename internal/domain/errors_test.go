package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("reserve: %w", ErrSlotAlreadyBooked)

	assert.ErrorIs(t, wrapped, ErrSlotAlreadyBooked)
	assert.NotErrorIs(t, wrapped, ErrConflictingBooking)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, IsConflict(wrapped))
	assert.Equal(t, "Slot already booked", PublicMessage(wrapped))
}

func TestValidationMatchesInvalidInput(t *testing.T) {
	err := Validation("date %q is in the past", "2020-01-01")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, `date "2020-01-01" is in the past`, err.Error())
}

func TestTransientHidesCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Transient("Failed to create booking", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.Equal(t, "Failed to create booking", PublicMessage(err))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestUnclassifiedError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, "Internal server error", PublicMessage(err))
	assert.Equal(t, "unknown", KindOf(err).String())
}
