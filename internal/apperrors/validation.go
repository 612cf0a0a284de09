package apperrors

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FromValidation переводит ошибки ozzo-validation в ошибку валидации с полями.
// Внутренние ошибки правил возвращаются как есть.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
		return Validation("Проверьте правильность заполнения полей", fields)
	}

	return Validation(err.Error(), nil)
}
