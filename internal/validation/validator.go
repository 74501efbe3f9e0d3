// Package validation wraps go-playground/validator with a shared instance,
// the domain's custom tags and request error translation.
//
// Failures are reported as "<path>: <message>" details, where path is the
// JSON path of the offending field (for example identifiedCollection[0].gameName).
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/vbonduro/boardgamer/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Path    string
	Tag     string
	Message string
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// RequestValidationError collects every field failure of one request.
type RequestValidationError struct {
	fields []FieldError
}

// NewError builds a RequestValidationError for a single path.
func NewError(path, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Path: path, Tag: "custom", Message: message}}}
}

func (ve *RequestValidationError) Fields() []FieldError {
	return ve.fields
}

// Details renders each failure as "<path>: <message>".
func (ve *RequestValidationError) Details() []string {
	out := make([]string, len(ve.fields))
	for i, f := range ve.fields {
		out[i] = f.String()
	}
	return out
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	return strings.Join(ve.Details(), "; ")
}

// GetValidator returns the shared validator, initialising it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("playercount", func(fl validator.FieldLevel) bool {
			return domain.IsPlayerCount(fl.Field().String())
		})
		_ = validate.RegisterValidation("playingtime", func(fl validator.FieldLevel) bool {
			return domain.IsPlayingTime(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct returns nil or a *RequestValidationError describing every
// failing field of s.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return NewError("", err.Error())
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Path:    fieldPath(fe.Namespace()),
			Tag:     fe.Tag(),
			Message: translateError(fe),
		}
	}
	return &RequestValidationError{fields: fields}
}

// DecodeJSON decodes one JSON value from r into v. Syntax and type errors are
// returned as *RequestValidationError so handlers can answer 400 uniformly.
// Type errors name every mismatched field by its JSON path.
func DecodeJSON(r io.Reader, v any) *RequestValidationError {
	data, err := io.ReadAll(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewError("body", fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		}
		return NewError("body", "failed to read request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewError("body", "request body is required")
	}

	err = json.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	var raw any
	if json.Unmarshal(data, &raw) != nil {
		return NewError("body", "malformed JSON")
	}
	if fields := typeMismatches(reflect.TypeOf(v), raw, ""); len(fields) > 0 {
		return &RequestValidationError{fields: fields}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &RequestValidationError{fields: []FieldError{{
			Path:    "body",
			Tag:     "type",
			Message: fmt.Sprintf("expected %s, received %s", jsonKind(typeErr.Type), typeErr.Value),
		}}}
	}
	return NewError("body", "malformed JSON")
}

// typeMismatches walks a decoded JSON value alongside the Go type it was
// meant for and reports each value whose JSON kind cannot fill its field.
// JSON null fills anything.
func typeMismatches(t reflect.Type, v any, path string) []FieldError {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v == nil || t.Kind() == reflect.Interface || reflect.PointerTo(t).Implements(unmarshalerType) {
		return nil
	}

	want, got := jsonKind(t), valueKind(v)
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		want = "string"
	}
	if want != got {
		if path == "" {
			path = "body"
		}
		return []FieldError{{Path: path, Tag: "type", Message: fmt.Sprintf("expected %s, received %s", want, got)}}
	}

	var out []FieldError
	switch val := v.(type) {
	case []any:
		if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
			return nil
		}
		for i, item := range val {
			out = append(out, typeMismatches(t.Elem(), item, fmt.Sprintf("%s[%d]", path, i))...)
		}
	case map[string]any:
		switch t.Kind() {
		case reflect.Map:
			for key, item := range val {
				out = append(out, typeMismatches(t.Elem(), item, joinPath(path, key))...)
			}
		case reflect.Struct:
			for i := 0; i < t.NumField(); i++ {
				f := t.Field(i)
				name := jsonName(f)
				if name == "" {
					continue
				}
				item, ok := lookupKey(val, name)
				if !ok {
					continue
				}
				out = append(out, typeMismatches(f.Type, item, joinPath(path, name))...)
			}
		}
	}
	return out
}

var unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// lookupKey matches object keys the way the decoder does: exact first, then
// case-insensitive.
func lookupKey(obj map[string]any, name string) (any, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func valueKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "value"
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

var errorMessageTemplates = map[string]string{
	"required":    "value is required",
	"playercount": "must be one of " + strings.Join(domain.PlayerCounts, ", "),
	"playingtime": "must be one of " + strings.Join(domain.PlayingTimes, ", "),
}

var errorMessageWithParam = map[string]string{
	"oneof": "must be one of: %s",
	"max":   "must be at most %s",
	"min":   "must be at least %s",
}

func translateError(fe validator.FieldError) string {
	if msg, ok := errorMessageTemplates[fe.Tag()]; ok {
		return msg
	}
	if tmpl, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Pointer:
		return jsonKind(t.Elem())
	default:
		return t.String()
	}
}
