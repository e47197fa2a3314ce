package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidationError reports the first invalid field of a product.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the editable fields of a product before it is saved.
func (p Product) Validate() error {
	if p.StartingPrice.Valid && p.StartingPrice.Decimal.IsNegative() {
		return &ValidationError{Field: "starting_price", Message: "starting price cannot be negative"}
	}

	err := validatorInstance().Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is required", field)}
	case "url":
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s must be a valid URL", field)}
	default:
		return &ValidationError{Field: field, Message: fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())}
	}
}
