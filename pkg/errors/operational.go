package errors

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// OperationalError carries the context of a failed editor operation:
// which flow and node it concerned and when it happened.
type OperationalError struct {
	Operation  string                 // What operation was being performed
	FlowID     string                 // Which flow
	NodeID     string                 // Which node (if applicable)
	Timestamp  time.Time              // When error occurred
	Attributes map[string]interface{} // Additional context (optional)
	Cause      error                  // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err := store.Select(id); err != nil {
//	    return NewOperationalError("selecting node", flowName, id, err)
//	}
func NewOperationalError(operation, flowID, nodeID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation: operation,
		FlowID:    flowID,
		NodeID:    nodeID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// WithAttr attaches a piece of context and returns the error
func (e *OperationalError) WithAttr(key string, value interface{}) *OperationalError {
	if e == nil {
		return nil
	}
	if e.Attributes == nil {
		e.Attributes = make(map[string]interface{})
	}
	e.Attributes[key] = value
	return e
}

// Error implements the error interface.
//
// Format: "operation: flow={id} node={id}: {cause}"
// Empty flow and node ids are omitted.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	msg := e.Operation
	if e.FlowID != "" {
		msg += " flow=" + e.FlowID
	}
	if e.NodeID != "" {
		msg += " node=" + e.NodeID
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// LogValue renders the error as a group of its fields for structured logs
func (e *OperationalError) LogValue() slog.Value {
	if e == nil {
		return slog.StringValue("<nil>")
	}

	attrs := []slog.Attr{slog.String("operation", e.Operation)}
	if e.FlowID != "" {
		attrs = append(attrs, slog.String("flow", e.FlowID))
	}
	if e.NodeID != "" {
		attrs = append(attrs, slog.String("node", e.NodeID))
	}

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.Attributes[k]))
	}

	attrs = append(attrs, slog.Time("at", e.Timestamp))
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	return slog.GroupValue(attrs...)
}
