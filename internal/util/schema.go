package util

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation (dotted path for nested values)
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema creates a JSON schema from a Go struct using reflection.
//
// Supported struct tags:
//
//	json:"name,omitempty"  property name; omitempty or a pointer type makes it optional
//	description:"..."      property description
//	enum:"a,b,c"           allowed string values
//	minimum:"1"            inclusive lower bound for numbers
//	maximum:"10"           inclusive upper bound for numbers
//
// Nested structs, slices and maps are described recursively.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return objectSchema(t, map[reflect.Type]bool{})
}

func objectSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	if seen[t] {
		return map[string]any{"type": "object"}
	}

	seen[t] = true
	defer delete(seen, t)

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := typeSchema(field.Type, seen)

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := strings.Split(enum, ",")
			items := make([]any, 0, len(values))

			for _, v := range values {
				items = append(items, strings.TrimSpace(v))
			}

			fieldSchema["enum"] = items
		}

		if minimum, ok := parseBound(field.Tag.Get("minimum")); ok {
			fieldSchema["minimum"] = minimum
		}

		if maximum, ok := parseBound(field.Tag.Get("maximum")); ok {
			fieldSchema["maximum"] = maximum
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func typeSchema(t reflect.Type, seen map[reflect.Type]bool) map[string]any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return objectSchema(t, seen)
	case reflect.Slice, reflect.Array:
		return map[string]any{
			"type":  "array",
			"items": typeSchema(t.Elem(), seen),
		}
	case reflect.Map:
		return map[string]any{
			"type":                 "object",
			"additionalProperties": typeSchema(t.Elem(), seen),
		}
	case reflect.Interface:
		return map[string]any{}
	default:
		return map[string]any{"type": getJSONType(t)}
	}
}

func parseBound(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

// RequiredFields returns the "required" list of a schema whether it was built
// by CreateSchema ([]string) or decoded from JSON ([]any).
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

// ValidateParameters validates parameters against a JSON schema.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	return validateObject("", params, schema)
}

func validateObject(path string, params map[string]any, schema map[string]any) error {
	for _, fieldName := range RequiredFields(schema) {
		value, exists := params[fieldName]
		if !exists {
			return &ValidationError{
				Field:   joinPath(path, fieldName),
				Message: "required field is missing",
			}
		}

		if value == nil {
			return &ValidationError{
				Field:   joinPath(path, fieldName),
				Message: "required field must not be null",
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for fieldName, value := range params {
		propSchema, exists := properties[fieldName]
		if !exists {
			continue // Allow extra fields
		}

		propMap, ok := propSchema.(map[string]any)
		if !ok {
			continue
		}

		if err := validateValue(joinPath(path, fieldName), value, propMap); err != nil {
			return err
		}
	}

	return nil
}

// ValidateValue validates a single value against a property schema.
func ValidateValue(field string, value any, schema map[string]any) error {
	return validateValue(field, value, schema)
}

func validateValue(path string, value any, schema map[string]any) error {
	if value == nil {
		return nil // null is valid for optional properties
	}

	expectedType, _ := schema["type"].(string)
	if !isValidType(value, expectedType) {
		return &ValidationError{
			Field:   path,
			Value:   value,
			Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
		}
	}

	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		if !containsValue(enum, value) {
			return &ValidationError{
				Field:   path,
				Value:   value,
				Message: fmt.Sprintf("value must be one of %v", enum),
			}
		}
	}

	if n, ok := toFloat(value); ok {
		if minimum, ok := toFloat(schema["minimum"]); ok && n < minimum {
			return &ValidationError{Field: path, Value: value, Message: fmt.Sprintf("must be >= %v", minimum)}
		}

		if maximum, ok := toFloat(schema["maximum"]); ok && n > maximum {
			return &ValidationError{Field: path, Value: value, Message: fmt.Sprintf("must be <= %v", maximum)}
		}
	}

	switch v := value.(type) {
	case map[string]any:
		if _, hasProps := schema["properties"]; hasProps {
			return validateObject(path, v, schema)
		}
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}

		for i, item := range v {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), item, items); err != nil {
				return err
			}
		}
	}

	return nil
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}

	return parent + "." + field
}

func containsValue(enum []any, value any) bool {
	for _, e := range enum {
		if e == value {
			return true
		}

		if ef, ok := toFloat(e); ok {
			if vf, ok := toFloat(value); ok && ef == vf {
				return true
			}
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}

	return false
}

// isPointer checks if a type is a pointer.
func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling produces float64 for numbers
			return v == float64(int64(v))
		}

		return false
	case "number":
		_, ok := toFloat(value)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []string, []float64, []int:
			return true
		}

		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true // Unknown types are assumed valid
	}
}
