package toml

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

var (
	ErrSyntax       = errors.New("toml syntax error")
	ErrDuplicateKey = errors.New("toml duplicate key")
	ErrUnknownKey   = errors.New("toml unknown key")
	ErrType         = errors.New("toml type mismatch")
)

// Unmarshal parses data into the struct pointed to by v, unknown keys are ignored
func Unmarshal(data []byte, v any) error {
	return unmarshal(data, v, false)
}

// UnmarshalStrict is Unmarshal that fails on keys with no matching field
func UnmarshalStrict(data []byte, v any) error {
	return unmarshal(data, v, true)
}

func unmarshal(data []byte, v any, strict bool) error {
	parsed, err := NewParser(data).Parse()
	if err != nil {
		return err
	}
	return decode(parsed, v, strict)
}

// Decode maps a parsed document onto the struct pointed to by v
func Decode(data map[string]any, v any) error {
	return decode(data, v, false)
}

func decode(data map[string]any, v any, strict bool) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer || val.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer", ErrType)
	}
	d := &decoder{strict: strict}
	return d.value(data, val.Elem(), "")
}

type decoder struct {
	strict bool
}

func (d *decoder) value(data any, val reflect.Value, path string) error {
	switch val.Kind() {
	case reflect.Pointer:
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		return d.value(data, val.Elem(), path)

	case reflect.Struct:
		m, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s: expected table, got %T", ErrType, path, data)
		}
		return d.structFields(m, val, path)

	case reflect.Map:
		if val.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %s: only string-keyed maps are supported", ErrType, path)
		}
		m, ok := data.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s: expected table, got %T", ErrType, path, data)
		}
		if val.IsNil() {
			val.Set(reflect.MakeMap(val.Type()))
		}
		for k, raw := range m {
			elem := reflect.New(val.Type().Elem()).Elem()
			if err := d.value(raw, elem, join(path, k)); err != nil {
				return err
			}
			val.SetMapIndex(reflect.ValueOf(k).Convert(val.Type().Key()), elem)
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := data.(int64)
		if !ok {
			f, isFloat := data.(float64)
			if !isFloat || f != math.Trunc(f) {
				return fmt.Errorf("%w: %s: expected integer, got %v", ErrType, path, data)
			}
			n = int64(f)
		}
		if val.OverflowInt(n) {
			return fmt.Errorf("%w: %s: %d overflows %s", ErrType, path, n, val.Type())
		}
		val.SetInt(n)

	case reflect.Float32, reflect.Float64:
		switch x := data.(type) {
		case float64:
			val.SetFloat(x)
		case int64:
			val.SetFloat(float64(x))
		default:
			return fmt.Errorf("%w: %s: expected number, got %T", ErrType, path, data)
		}

	case reflect.String:
		s, ok := data.(string)
		if !ok {
			return fmt.Errorf("%w: %s: expected string, got %T", ErrType, path, data)
		}
		val.SetString(s)

	case reflect.Bool:
		b, ok := data.(bool)
		if !ok {
			return fmt.Errorf("%w: %s: expected bool, got %T", ErrType, path, data)
		}
		val.SetBool(b)

	case reflect.Interface:
		val.Set(reflect.ValueOf(data))

	default:
		return fmt.Errorf("%w: %s: unsupported kind %s", ErrType, path, val.Kind())
	}
	return nil
}

func (d *decoder) structFields(m map[string]any, val reflect.Value, path string) error {
	typ := val.Type()
	known := make([]string, 0, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		key, skip := fieldKey(field)
		if skip {
			continue
		}
		known = append(known, key)
		raw, ok := m[key]
		if !ok {
			continue
		}
		if err := d.value(raw, val.Field(i), join(path, key)); err != nil {
			return err
		}
	}
	if d.strict {
		for key := range m {
			if !slices.Contains(known, key) {
				return fmt.Errorf("%w: %s", ErrUnknownKey, join(path, key))
			}
		}
	}
	return nil
}

// fieldKey returns the document key of an exported field, from its toml tag or name
func fieldKey(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", true
	}
	key := field.Name
	if tag := field.Tag.Get("toml"); tag != "" {
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" {
			return "", true
		}
		if name != "" {
			key = name
		}
	}
	return key, false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
