package flow

import (
	"errors"
	"reflect"

	"github.com/google/uuid"
)

// Common flow errors
var (
	// ErrNodeNotFound is returned when a node id does not exist in the graph
	ErrNodeNotFound = errors.New("node not found")

	// ErrFlowNotFound is returned when a flow document cannot be found
	ErrFlowNotFound = errors.New("flow not found")
)

// NodeKind is the type tag of a node. The set of kinds is closed.
type NodeKind string

// Node kinds
const (
	KindStart         NodeKind = "start"
	KindEnd           NodeKind = "end"
	KindAPICall       NodeKind = "api_call"
	KindQueueProducer NodeKind = "queue_producer"
	KindScript        NodeKind = "script"
	KindCondition     NodeKind = "condition"
	KindTransform     NodeKind = "transform"
	KindSubFlow       NodeKind = "sub_flow"
	KindLoop          NodeKind = "loop"
	KindLLM           NodeKind = "llm"
	KindVectorStore   NodeKind = "vector_store"
	KindAssign        NodeKind = "assign"
	KindParse         NodeKind = "parse"
	KindFingerprint   NodeKind = "fingerprint"
	KindKeywordMatch  NodeKind = "keyword_match"
	KindNote          NodeKind = "note"
)

var kindDisplayNames = map[NodeKind]string{
	KindStart:         "Start",
	KindEnd:           "End",
	KindAPICall:       "API Call",
	KindQueueProducer: "Queue Producer",
	KindScript:        "Script",
	KindCondition:     "Condition",
	KindTransform:     "Transform",
	KindSubFlow:       "Sub-flow",
	KindLoop:          "Loop",
	KindLLM:           "Language Model",
	KindVectorStore:   "Vector Store",
	KindAssign:        "Assign Variables",
	KindParse:         "Structured Parse",
	KindFingerprint:   "Fingerprint",
	KindKeywordMatch:  "Keyword Match",
	KindNote:          "Note",
}

// Kinds returns every node kind in palette order
func Kinds() []NodeKind {
	return []NodeKind{
		KindStart, KindEnd, KindAPICall, KindQueueProducer, KindScript, KindCondition,
		KindTransform, KindSubFlow, KindLoop, KindLLM, KindVectorStore, KindAssign,
		KindParse, KindFingerprint, KindKeywordMatch, KindNote,
	}
}

// Valid reports whether k is one of the known kinds
func (k NodeKind) Valid() bool {
	_, ok := kindDisplayNames[k]
	return ok
}

// DisplayName returns the human readable name of the kind
func (k NodeKind) DisplayName() string {
	if name, ok := kindDisplayNames[k]; ok {
		return name
	}
	return string(k)
}

// Required reports whether every flow needs a node of this kind.
// Required nodes cannot be deleted from the editor.
func (k NodeKind) Required() bool {
	return k == KindStart || k == KindEnd
}

// Config keys for the variable lists nested in node configuration
const (
	VariablesKey       = "variables"
	OutputVariablesKey = "outputVariables"
)

// VariableLists returns the variable list keys a node kind carries
func (k NodeKind) VariableLists() []string {
	switch k {
	case KindStart, KindSubFlow:
		return []string{VariablesKey}
	case KindEnd:
		return []string{OutputVariablesKey}
	default:
		return nil
	}
}

// HasVariableList reports whether the kind carries the given variable list
func (k NodeKind) HasVariableList(key string) bool {
	for _, l := range k.VariableLists() {
		if l == key {
			return true
		}
	}
	return false
}

// NewID generates a new unique identifier for nodes, edges and flows
func NewID() string {
	return uuid.New().String()
}

// Values is a flat bag of named values, the shape a form works with
type Values map[string]interface{}

// Config is the kind-specific configuration of a node
type Config map[string]interface{}

// Clone returns a deep copy of the configuration
func (c Config) Clone() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies maps, slices and variable lists. Scalars are returned as is.
func CloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case Config:
		return val.Clone()
	case Values:
		out := make(Values, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []Variable:
		return CloneVariables(val)
	case []string:
		return append([]string(nil), val...)
	}
	return v
}

// AsMap returns v as a plain object when it is one of the object shapes found in
// configuration: decoded maps, Config or Values.
func AsMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Config:
		return map[string]interface{}(m), true
	case Values:
		return map[string]interface{}(m), true
	}
	return nil, false
}

// PlainValue deep copies v, turning every nested Config or Values into
// map[string]interface{}.
// yaml decodes objects nested under a Config as Config; configuration values
// are kept in the plain shapes so decoders see one form.
func PlainValue(v interface{}) interface{} {
	if m, ok := AsMap(v); ok {
		out := make(map[string]interface{}, len(m))
		for k, item := range m {
			out[k] = PlainValue(item)
		}
		return out
	}
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = PlainValue(item)
		}
		return out
	case []Variable:
		return CloneVariables(val)
	}
	return v
}

// IsSequence reports whether v is a slice or array value.
// Only the top level is inspected; element shapes are not checked.
func IsSequence(v interface{}) bool {
	if v == nil {
		return false
	}
	kind := reflect.TypeOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}

// AsSlice converts any slice value into []interface{}.
// The second return value is false when v is not a sequence.
func AsSlice(v interface{}) ([]interface{}, bool) {
	if items, ok := v.([]interface{}); ok {
		return items, true
	}
	if !IsSequence(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
