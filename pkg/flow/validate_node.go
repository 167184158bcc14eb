package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/tidwall/gjson"
)

var validHTTPMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true, "HEAD": true,
}

var validMessageRoles = map[string]bool{
	"system": true, "user": true, "assistant": true, "tool": true,
}

// unsafeExpressionPatterns are rejected in any expression field
var unsafeExpressionPatterns = []string{"os.", "exec.", "http.", "net.", "syscall.", "unsafe."}

// ValidateNode checks the kind-specific configuration of a node.
// It reports every problem found, joined into one error.
func ValidateNode(n *Node) error {
	if n == nil {
		return errors.New("nil node")
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("unknown node kind: %s", n.Kind)
	}

	var errs []error
	cfg := n.Config

	for _, key := range n.Kind.VariableLists() {
		if err := ValidateVariableList(DecodeVariables(cfg[key])); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	switch n.Kind {
	case KindAPICall:
		if stringField(cfg, "url") == "" {
			errs = append(errs, errors.New("api_call: empty url"))
		}
		if method := strings.ToUpper(stringField(cfg, "method")); method != "" && !validHTTPMethods[method] {
			errs = append(errs, fmt.Errorf("api_call: invalid method: %s", method))
		}
	case KindQueueProducer:
		if stringField(cfg, "topic") == "" {
			errs = append(errs, errors.New("queue_producer: empty topic"))
		}
	case KindCondition:
		cond := stringField(cfg, "condition")
		if cond == "" {
			errs = append(errs, errors.New("condition: empty condition"))
		} else if err := ValidateExpression(cond); err != nil {
			errs = append(errs, fmt.Errorf("condition: %w", err))
		}
	case KindTransform:
		if expression := stringField(cfg, "expression"); expression != "" {
			if err := ValidateExpression(expression); err != nil {
				errs = append(errs, fmt.Errorf("transform: %w", err))
			}
		}
	case KindSubFlow:
		if stringField(cfg, "flowId") == "" {
			errs = append(errs, errors.New("sub_flow: empty flow id"))
		}
	case KindLoop:
		if stringField(cfg, "collection") == "" {
			errs = append(errs, errors.New("loop: empty collection"))
		}
		if stringField(cfg, "itemVariable") == "" {
			errs = append(errs, errors.New("loop: empty item variable"))
		}
		if brk := stringField(cfg, "breakCondition"); brk != "" {
			if err := ValidateExpression(brk); err != nil {
				errs = append(errs, fmt.Errorf("loop: break condition: %w", err))
			}
		}
	case KindLLM:
		errs = append(errs, validateMessages(cfg["messages"])...)
	case KindAssign:
		errs = append(errs, validateAssignments(cfg["assignments"])...)
	case KindParse:
		errs = append(errs, validateOutputFields(stringField(cfg, "sample"), cfg["outputFields"])...)
	}

	return errors.Join(errs...)
}

// ValidateExpression checks that an expression compiles and uses no unsafe operations.
// Unknown variables are allowed; values are only known at run time.
func ValidateExpression(value string) error {
	for _, pattern := range unsafeExpressionPatterns {
		if strings.Contains(value, pattern) {
			return fmt.Errorf("unsafe operation not allowed: %s", pattern)
		}
	}
	if _, err := expr.Compile(value, expr.AllowUndefinedVariables()); err != nil {
		return fmt.Errorf("invalid expression syntax: %w", err)
	}
	return nil
}

func validateMessages(v interface{}) []error {
	items, ok := AsSlice(v)
	if !ok {
		return nil
	}
	var errs []error
	for i, item := range items {
		msg, ok := AsMap(item)
		if !ok {
			errs = append(errs, fmt.Errorf("llm: message %d is not an object", i))
			continue
		}
		role, _ := msg["role"].(string)
		if !validMessageRoles[role] {
			errs = append(errs, fmt.Errorf("llm: message %d has invalid role %q", i, role))
		}
	}
	return errs
}

func validateAssignments(v interface{}) []error {
	items, ok := AsSlice(v)
	if !ok {
		return nil
	}
	var errs []error
	for i, item := range items {
		a, ok := AsMap(item)
		if !ok {
			errs = append(errs, fmt.Errorf("assign: assignment %d is not an object", i))
			continue
		}
		if stringField(a, "variable") == "" {
			errs = append(errs, fmt.Errorf("assign: assignment %d has no variable", i))
		}
		if expression := stringField(a, "expression"); expression != "" {
			if err := ValidateExpression(expression); err != nil {
				errs = append(errs, fmt.Errorf("assign: assignment %d: %w", i, err))
			}
		}
	}
	return errs
}

// validateOutputFields checks parse output fields. When a JSON sample is configured
// every field path must resolve against it.
func validateOutputFields(sample string, v interface{}) []error {
	var errs []error
	if sample != "" && !gjson.Valid(sample) {
		errs = append(errs, errors.New("parse: sample is not valid JSON"))
		sample = ""
	}

	items, ok := AsSlice(v)
	if !ok {
		return errs
	}
	for i, item := range items {
		field, ok := AsMap(item)
		if !ok {
			errs = append(errs, fmt.Errorf("parse: output field %d is not an object", i))
			continue
		}
		name := stringField(field, "name")
		if name == "" {
			errs = append(errs, fmt.Errorf("parse: output field %d has no name", i))
		}
		path := stringField(field, "path")
		if path == "" {
			path = name
		}
		if sample != "" && path != "" && !gjson.Get(sample, path).Exists() {
			errs = append(errs, fmt.Errorf("parse: output field %q: path %q not found in sample", name, path))
		}
	}
	return errs
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
