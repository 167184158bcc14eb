package flow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/flowedit/pkg/validation"
)

// Variable is a named input or output of a node. Variables live in ordered lists
// inside node configuration; order is significant.
type Variable struct {
	Name         string      `json:"name" yaml:"name"`
	Type         string      `json:"type,omitempty" yaml:"type,omitempty"`
	DefaultValue interface{} `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`

	// Extra holds any other keys of the entry, such as required or label.
	// They are carried through edits unchanged.
	Extra map[string]interface{} `json:"-" yaml:",inline"`
}

// MarshalJSON writes Extra keys alongside the known fields
func (v Variable) MarshalJSON() ([]byte, error) {
	type plain Variable
	data, err := json.Marshal(plain(v))
	if err != nil || len(v.Extra) == 0 {
		return data, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, x := range v.Extra {
		if _, known := m[k]; !known {
			m[k] = x
		}
	}
	return json.Marshal(m)
}

// variable keys with a Variable field of their own
var variableFields = map[string]bool{
	"name":         true,
	"type":         true,
	"defaultValue": true,
	"description":  true,
}

// validVariableTypes are the allowed variable types
var validVariableTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"any":     true,
}

// Validate checks if the variable is valid.
// An empty type is accepted while a variable is under construction.
func (v Variable) Validate() error {
	if v.Name == "" {
		return errors.New("variable: empty variable name")
	}

	if !validation.IsVariableName(v.Name) {
		return fmt.Errorf("variable: invalid variable name format: %s (must start with letter, contain only alphanumeric and underscore)", v.Name)
	}

	if v.Type == "" {
		return nil
	}

	if !validVariableTypes[v.Type] {
		return fmt.Errorf("variable: invalid variable type: %s (must be one of: string, number, boolean, object, array, any)", v.Type)
	}

	if v.DefaultValue != nil {
		return v.validateDefaultValueType()
	}
	return nil
}

// validateDefaultValueType checks if the default value matches the declared type
func (v Variable) validateDefaultValueType() error {
	switch v.Type {
	case "any":
		return nil
	case "string":
		if _, ok := v.DefaultValue.(string); !ok {
			return fmt.Errorf("variable: default value type mismatch for %s: expected string, got %T", v.Name, v.DefaultValue)
		}
	case "number":
		switch v.DefaultValue.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			return fmt.Errorf("variable: default value type mismatch for %s: expected number, got %T", v.Name, v.DefaultValue)
		}
	case "boolean":
		if _, ok := v.DefaultValue.(bool); !ok {
			return fmt.Errorf("variable: default value type mismatch for %s: expected boolean, got %T", v.Name, v.DefaultValue)
		}
	case "object":
		if _, ok := AsMap(v.DefaultValue); !ok {
			return fmt.Errorf("variable: default value type mismatch for %s: expected object (map), got %T", v.Name, v.DefaultValue)
		}
	case "array":
		if !IsSequence(v.DefaultValue) {
			return fmt.Errorf("variable: default value type mismatch for %s: expected array (slice), got %T", v.Name, v.DefaultValue)
		}
	}
	return nil
}

// CloneVariables copies a variable list
func CloneVariables(vars []Variable) []Variable {
	if vars == nil {
		return nil
	}
	out := make([]Variable, len(vars))
	for i, v := range vars {
		out[i] = v
		out[i].DefaultValue = CloneValue(v.DefaultValue)
		out[i].Extra = cloneExtra(v.Extra)
	}
	return out
}

// DecodeVariables reads a variable list out of a configuration value.
// It accepts typed lists as well as the generic maps produced by YAML or JSON decoding.
// Entries without a name are skipped. A value that is not a list decodes to nil.
func DecodeVariables(v interface{}) []Variable {
	switch vars := v.(type) {
	case nil:
		return nil
	case []Variable:
		return CloneVariables(vars)
	}

	items, ok := AsSlice(v)
	if !ok {
		return nil
	}

	out := make([]Variable, 0, len(items))
	for _, item := range items {
		switch entry := item.(type) {
		case Variable:
			out = append(out, entry)
		case *Variable:
			if entry != nil {
				out = append(out, *entry)
			}
		default:
			if m, ok := AsMap(item); ok {
				if variable, ok := decodeVariable(m); ok {
					out = append(out, variable)
				}
			}
		}
	}
	return out
}

func decodeVariable(m map[string]interface{}) (Variable, bool) {
	name, _ := m["name"].(string)
	if name == "" {
		return Variable{}, false
	}
	v := Variable{Name: name, DefaultValue: PlainValue(m["defaultValue"])}
	v.Type, _ = m["type"].(string)
	v.Description, _ = m["description"].(string)
	for k, x := range m {
		if variableFields[k] {
			continue
		}
		if v.Extra == nil {
			v.Extra = make(map[string]interface{})
		}
		v.Extra[k] = PlainValue(x)
	}
	return v, true
}

func cloneExtra(extra map[string]interface{}) map[string]interface{} {
	if extra == nil {
		return nil
	}
	out := make(map[string]interface{}, len(extra))
	for k, v := range extra {
		out[k] = CloneValue(v)
	}
	return out
}

// ValidateVariableList validates each variable and checks names are unique within the list
func ValidateVariableList(vars []Variable) error {
	var errs []error
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
		if v.Name == "" {
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Errorf("duplicate variable name found: %s", v.Name))
		}
		seen[v.Name] = true
	}
	return errors.Join(errs...)
}
