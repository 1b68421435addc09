package toml

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Marshal encodes a struct as a document
// Scalar fields are written first in declaration order, nested structs become tables
func Marshal(v any) ([]byte, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, fmt.Errorf("%w: cannot marshal nil", ErrType)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: cannot marshal %s", ErrType, val.Kind())
	}

	var buf bytes.Buffer
	if err := encodeTable(&buf, val, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeTable(buf *bytes.Buffer, val reflect.Value, path string) error {
	typ := val.Type()
	var tables []int

	for i := range typ.NumField() {
		key, skip := fieldKey(typ.Field(i))
		if skip {
			continue
		}
		field := indirect(val.Field(i))
		if !field.IsValid() {
			continue
		}
		if field.Kind() == reflect.Struct {
			tables = append(tables, i)
			continue
		}
		lit, err := formatScalar(field)
		if err != nil {
			return fmt.Errorf("%s: %w", join(path, key), err)
		}
		fmt.Fprintf(buf, "%s = %s\n", formatKey(key), lit)
	}

	for _, i := range tables {
		key, _ := fieldKey(typ.Field(i))
		sub := join(path, formatKey(key))
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(buf, "[%s]\n", sub)
		if err := encodeTable(buf, indirect(val.Field(i)), sub); err != nil {
			return err
		}
	}
	return nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func formatScalar(v reflect.Value) (string, error) {
	switch v.Kind() {
	case reflect.String:
		return strconv.Quote(v.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(v.Float()), nil
	default:
		return "", fmt.Errorf("%w: unsupported kind %s", ErrType, v.Kind())
	}
}

// formatFloat always yields a float literal so the value round-trips as float
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func formatKey(key string) string {
	for _, r := range key {
		if !isAlpha(r) && !isDigit(r) && r != '_' && r != '-' {
			return strconv.Quote(key)
		}
	}
	return key
}
