// Package validation holds the input checks shared by every handler. Each
// check fails with an InvalidArgument error so it never reaches a store.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Tomlord1122/todo-pics/internal/apperror"
)

const (
	MsgMissingID       = "Missing id parameter"
	MsgInvalidID       = "Invalid id parameter"
	MsgInvalidTitle    = "Invalid title"
	MsgMissingFilename = "Filename is missing"

	// DateLayout is the wire format of start_date and end_date.
	DateLayout = "2006-01-02"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names rather than Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("notblank", notBlank)
		_ = validate.RegisterValidation("isodate", isoDate)
	})
	return validate
}

// ValidateID parses a path or query identifier.
func ValidateID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperror.InvalidArgument(MsgMissingID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidArgument(MsgInvalidID)
	}
	return id, nil
}

// ValidateTitle returns the trimmed title.
func ValidateTitle(raw *string) (string, error) {
	if raw == nil {
		return "", apperror.InvalidArgument(MsgInvalidTitle)
	}
	title := strings.TrimSpace(*raw)
	if title == "" {
		return "", apperror.InvalidArgument(MsgInvalidTitle)
	}
	return title, nil
}

func ValidateFilename(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperror.InvalidArgument(MsgMissingFilename)
	}
	return name, nil
}

// Struct runs the `validate` tags of v and reports the first failing field.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.InvalidArgument(err.Error())
	}
	fe := fieldErrs[0]
	value := fe.Value()
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			value = nil
		} else {
			value = rv.Elem().Interface()
		}
	}
	return apperror.InvalidArgument(fmt.Sprintf("invalid '%s' with value '%v'", fe.Field(), value))
}

// ParseDate parses a YYYY-MM-DD string. The empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return strings.TrimSpace(field.String()) != ""
}

// isoDate accepts "" so that a present empty value can clear a date column.
func isoDate(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	s := field.String()
	if s == "" {
		return true
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
