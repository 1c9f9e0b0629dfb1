package core

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"procurement/pkg/domain"
	pkgerrors "procurement/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Decimals validate as their sign so gt=0/gte=0 hold at any precision.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.Sign()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

type createUserInput struct {
	Login    string      `validate:"required"`
	Password string      `validate:"required"`
	Role     domain.Role `validate:"oneof=Manager Admin"`
}

type createStockInput struct {
	Name string `validate:"required"`
}

type createSupplierInput struct {
	Name string `validate:"required"`
}

type orderLineInput struct {
	Quantity  decimal.Decimal `validate:"gt=0"`
	UnitPrice decimal.Decimal `validate:"gte=0"`
}

type createOrderInput struct {
	Lines []orderLineInput `validate:"required,min=1,dive"`
}

// fieldMessages maps "<Field>.<tag>" to the message surfaced to callers.
var fieldMessages = map[string]string{
	"Login.required":    "login is required",
	"Password.required": "password is required",
	"Role.oneof":        "invalid role",
	"Name.required":     "name is required",
	"Lines.required":    "order must contain at least one line",
	"Lines.min":         "order must contain at least one line",
	"Quantity.gt":       "invalid quantity/price",
	"UnitPrice.gte":     "invalid quantity/price",
}

// validateInput runs struct validation and converts the first failure into a
// coded validation error. Every failing field is listed in the details.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = messageFor(fe)
	}
	return pkgerrors.Validation(messageFor(fieldErrs[0])).WithDetails(details)
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
