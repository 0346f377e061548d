package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/church_backend/config"
)

// check if id exists, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// check an optional foreign key; adds a field message to v when it does not exist
func ValidateOptionalReference[T any](ctx context.Context, v *ValidationError, field string, id *int) error {
	if id == nil || *id == 0 {
		return nil
	}
	err := ValidateResourceId[T](ctx, *id)
	if errors.Is(err, ErrorRecordNotFound) {
		v.Add(field, "does not exist")
		return nil
	}
	return err
}

func ValidateUnique[T any](ctx context.Context, column string, value interface{}, exceptId int) error {
	var count int64
	var err error
	if exceptId == 0 {
		count, err = ResourceCountWhere[T](ctx, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError(column, "has already been taken")
	}
	return nil
}

// count records, using WHERE $condition
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(JsonTagName)
	return v
}

// JsonTagName makes validator report the json field name instead of the Go one.
func JsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// ValidatorEngine exposes the shared validator so gin binding reports the same field names.
func ValidatorEngine() *validator.Validate {
	return validate
}

// ValidateStruct runs the same `binding` tags gin uses and converts failures into a ValidationError.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return ValidationFromBinding(err)
	}
	return nil
}

// ValidationFromBinding converts validator or json decoding errors into a ValidationError.
// Other errors are returned unchanged.
func ValidationFromBinding(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		v := &ValidationError{}
		for _, fe := range ves {
			v.Add(fe.Field(), validationMessage(fe))
		}
		return v
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return NewValidationError(field, "must be of type "+typeErr.Type.String())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return NewValidationError("body", "malformed JSON")
	}
	if err != nil && strings.Contains(err.Error(), "parsing time") {
		return NewValidationError("body", "dates must be RFC3339 timestamps")
	}
	if err != nil && strings.Contains(err.Error(), "decimal") {
		return NewValidationError("body", "amounts must be numbers")
	}
	return err
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gtefield":
		return "must be on or after " + fe.Param()
	}
	return "is invalid (" + fe.Tag() + ")"
}
