package apperrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	validation := Validationf("url %q is bad", "ftp://x")
	notFound := NotFound("webhook", "abc")
	invalidState := InvalidStatef("delivery is %s", "pending")

	assert.True(t, IsValidation(validation))
	assert.False(t, IsValidation(notFound))

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(invalidState))

	assert.True(t, IsInvalidState(invalidState))
	assert.False(t, IsInvalidState(validation))
}

func TestClassificationThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", NotFound("delivery", "d1"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsValidation(wrapped))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "webhook abc not found", NotFound("webhook", "abc").Error())
	assert.Contains(t, Validationf("bad url").Error(), "validation failed")
	assert.Contains(t, InvalidStatef("nope").Error(), "invalid state")
}
