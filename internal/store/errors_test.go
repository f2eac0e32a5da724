package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/librisapp/libris-server/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("disk full")
	err := &store.Error{Code: http.StatusInternalServerError, Message: "write failed", Err: cause}

	assert.Equal(t, "write failed: disk full", err.Error())
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, http.StatusInternalServerError, err.HTTPCode())
}

func TestError_WithMessageKeepsIdentity(t *testing.T) {
	err := store.ErrNotFound.WithMessage("publication 12 not found")

	assert.Equal(t, "publication 12 not found", err.Message)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.False(t, errors.Is(err, store.ErrAlreadyExists))
}

func TestIsNotFound(t *testing.T) {
	wrapped := fmt.Errorf("get writer: %w", store.ErrNotFound)

	assert.True(t, store.IsNotFound(wrapped))
	assert.False(t, store.IsNotFound(store.ErrInvalidInput))
	assert.False(t, store.IsNotFound(nil))
}
