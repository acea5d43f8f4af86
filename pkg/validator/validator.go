package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateStruct validates a struct based on validate tags.
// Supported rules: required, email, min=N, max=N (string length in runes), oneof=a b c.
// Error messages name fields by their json tag when one is set.
func ValidateStruct(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" || !field.IsExported() {
			continue
		}

		value := v.Field(i)
		if value.Kind() == reflect.Ptr {
			if value.IsNil() {
				if slices.Contains(strings.Split(tag, ","), "required") {
					return fmt.Errorf("%s is required", fieldName(field))
				}
				continue
			}
			value = value.Elem()
		}

		for _, rule := range strings.Split(tag, ",") {
			if err := validateField(fieldName(field), value, rule); err != nil {
				return err
			}
		}
	}

	return nil
}

func fieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// validateField validates a single field based on a rule
func validateField(name string, value reflect.Value, rule string) error {
	rule, arg, _ := strings.Cut(rule, "=")

	switch rule {
	case "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", name)
		}
	case "email":
		if value.Kind() == reflect.String {
			if err := ValidateEmail(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid email", name)
			}
		}
	case "min", "max":
		limit, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid %s rule on %s", rule, name)
		}
		if value.Kind() != reflect.String {
			return nil
		}
		n := utf8.RuneCountInString(value.String())
		if rule == "min" && n < limit {
			return fmt.Errorf("%s must be at least %d characters", name, limit)
		}
		if rule == "max" && n > limit {
			return fmt.Errorf("%s must be at most %d characters", name, limit)
		}
	case "oneof":
		if value.Kind() == reflect.String && value.String() != "" && !slices.Contains(strings.Fields(arg), value.String()) {
			return fmt.Errorf("%s must be one of: %s", name, strings.Join(strings.Fields(arg), ", "))
		}
	}
	return nil
}

// isZero checks if a value is zero/empty
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(SanitizeString(email))
}
