package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"visubase/internal/reference"
	"visubase/internal/schema"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	ErrRequired     = "required"
	ErrTypeMismatch = "type_mismatch"
	ErrUnknownField = "unknown_field"
	ErrReadOnly     = "readonly_field"
)

// Columns the backend fills in itself; rows never carry them on write.
var readonlyColumns = map[string]bool{"id": true, "created_at": true}

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// validateRow checks obj against the columns of t and normalizes values in
// place. insert enables the required check for NOT NULL columns the backend
// cannot fill.
func validateRow(t schema.Table, types reference.TypeCatalog, obj map[string]any, insert bool) []FieldError {
	var errs []FieldError

	byName := make(map[string]schema.Column, len(t.Columns))
	for _, c := range t.Columns {
		byName[c.Name] = c
	}

	if insert {
		for _, c := range t.Columns {
			if readonlyColumns[c.Name] || c.Nullable || autoFilled(c) {
				continue
			}
			if _, ok := obj[c.Name]; !ok {
				errs = append(errs, ferr(ErrRequired, c.Name, "Field '"+c.Name+"' is required"))
			}
		}
	}

	for name, val := range obj {
		if readonlyColumns[name] {
			errs = append(errs, ferr(ErrReadOnly, name, "Field '"+name+"' is read-only"))
			continue
		}
		c, ok := byName[name]
		if !ok {
			errs = append(errs, ferr(ErrUnknownField, name, "Unknown field '"+name+"'"))
			continue
		}
		if val == nil {
			if !c.Nullable {
				errs = append(errs, ferr(ErrRequired, name, "Field '"+name+"' cannot be null"))
			}
			continue
		}
		v, err := coerceValue(types, c, val)
		if err != nil {
			errs = append(errs, ferr(ErrTypeMismatch, name, "Field '"+name+"' "+err.Error()))
			continue
		}
		obj[name] = v
	}
	return errs
}

func autoFilled(c schema.Column) bool {
	t := strings.ToLower(c.Type)
	return strings.Contains(t, "serial")
}

// coerceValue checks v by the catalog group of the column type. Array and
// unknown types are passed to the backend as they are.
func coerceValue(types reference.TypeCatalog, c schema.Column, v any) (any, error) {
	if strings.HasSuffix(strings.TrimSpace(c.Type), "[]") {
		return v, nil
	}
	item, ok := types.Lookup(c.Type)
	if !ok {
		return v, nil
	}
	switch item.Group {
	case "text", "binary":
		return toStringStrict(v)
	case "number":
		if strings.Contains(item.Code, "int") || strings.Contains(item.Code, "serial") {
			return toIntStrict(v)
		}
		return toFloatStrict(v)
	case "logical":
		return toBoolStrict(v)
	case "identity":
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		if _, err := uuid.Parse(s); err != nil {
			return nil, errors.New("must be uuid")
		}
		return s, nil
	case "time":
		s, err := toStringStrict(v)
		if err != nil {
			return nil, err
		}
		return s, checkTime(item.Code, s)
	default:
		return v, nil
	}
}

func checkTime(code, s string) error {
	switch code {
	case "date":
		if _, err := time.Parse(time.DateOnly, s); err != nil {
			return errors.New("must be date (YYYY-MM-DD)")
		}
	case "time":
		if _, err := time.Parse(time.TimeOnly, s); err != nil {
			if _, err := time.Parse("15:04", s); err != nil {
				return errors.New("must be time (HH:MM[:SS])")
			}
		}
	case "timestamp":
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			if _, err := time.Parse("2006-01-02T15:04:05", s); err != nil {
				return errors.New("must be datetime")
			}
		}
	default:
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return errors.New("must be RFC3339 datetime")
		}
	}
	return nil
}

func toStringStrict(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.New("must be string")
}

func toIntStrict(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		// JSON numbers decode as float64
		if t != float64(int64(t)) {
			return 0, errors.New("must be integer")
		}
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, errors.New("must be integer")
		}
		return n, nil
	default:
		return 0, errors.New("must be integer")
	}
}

func toFloatStrict(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, errors.New("must be number")
		}
		return f, nil
	default:
		return 0, errors.New("must be number")
	}
}

func toBoolStrict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
	}
	return false, errors.New("must be boolean")
}
