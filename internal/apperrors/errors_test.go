package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", Unauthenticated("нужен вход"), http.StatusUnauthorized},
		{"forbidden", Forbidden("нет прав"), http.StatusForbidden},
		{"not found", NotFound("нет"), http.StatusNotFound},
		{"validation", FieldError("title", "обязательно"), http.StatusBadRequest},
		{"conflict", Conflict("уже"), http.StatusConflict},
		{"wrapped", fmt.Errorf("update: %w", NotFound("нет")), http.StatusNotFound},
		{"plain", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestErrorIsKind(t *testing.T) {
	err := fmt.Errorf("create: %w", FieldError("ad_sender_id", "чужое объявление"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrForbidden))

	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "чужое объявление", appErr.Fields["ad_sender_id"])
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	err := &Error{Kind: ErrConflict}
	assert.Equal(t, "conflict", err.Error())
}
