// Package apperrors описывает типизированные ошибки предметной области.
// Сервисы возвращают их как есть, а ErrorHandler превращает в HTTP-ответ.
package apperrors

import (
	"errors"
	"net/http"
)

// Виды ошибок. Сравниваются через errors.Is
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
)

// Error ошибка определённого вида с сообщением для пользователя
type Error struct {
	Kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

// Unwrap позволяет сравнивать ошибку с видом через errors.Is
func (e *Error) Unwrap() error { return e.Kind }

// StatusCode возвращает HTTP-статус, соответствующий виду ошибки
func (e *Error) StatusCode() int {
	return StatusCode(e.Kind)
}

// StatusCode сопоставляет ошибку с HTTP-статусом. Неизвестные ошибки дают 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: ErrUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// Validation создаёт ошибку валидации. fields может быть nil.
func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

// FieldError ошибка валидации одного поля
func FieldError(field, msg string) *Error {
	return Validation(msg, map[string]string{field: msg})
}
