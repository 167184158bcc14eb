// Package refdata serves reference entities (enumerations and constants) to
// value pickers. Lists are fetched once per scope key and memoized for the life
// of the process; concurrent readers of the same key share one fetch.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/flowedit/pkg/flow"
)

// ErrNoScope is returned when a read has no scope key
var ErrNoScope = errors.New("no reference data scope")

// Kind distinguishes enumerations from constants
type Kind string

// Entity kinds
const (
	KindEnum     Kind = "enum"
	KindConstant Kind = "constant"
)

// Scope is the level a constant is defined at
type Scope string

// Entity scopes
const (
	ScopeProject Scope = "project"
	ScopeFlow    Scope = "flow"
)

// LabeledValue is one allowed value of an enumeration
type LabeledValue struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Entity is an enumeration or constant definition
type Entity struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Name        string         `json:"name"`
	ValueType   string         `json:"valueType,omitempty"`
	Value       interface{}    `json:"value,omitempty"`
	Values      []LabeledValue `json:"values,omitempty"`
	Scope       Scope          `json:"scope"`
	ProjectID   string         `json:"projectId"`
	FlowID      string         `json:"flowId,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Token returns the template reference a node configuration uses for the entity
func (e Entity) Token() string {
	switch e.Kind {
	case KindEnum:
		return "{{enum." + e.Name + "}}"
	case KindConstant:
		return "{{const." + e.Name + "}}"
	default:
		return ""
	}
}

// ScopeKey identifies the owner of a reference list: a project, optionally narrowed to a flow
type ScopeKey string

// NewScopeKey builds the key for a project and optional flow. An empty project gives the zero key.
func NewScopeKey(projectID, flowID string) ScopeKey {
	if projectID == "" {
		return ""
	}
	if flowID == "" {
		return ScopeKey(projectID)
	}
	return ScopeKey(projectID + ":" + flowID)
}

// IsZero reports whether the key names no scope
func (k ScopeKey) IsZero() bool {
	return k == ""
}

// Project returns the project part of the key
func (k ScopeKey) Project() string {
	project, _, _ := strings.Cut(string(k), ":")
	return project
}

// Flow returns the flow part of the key, or ""
func (k ScopeKey) Flow() string {
	_, flow, _ := strings.Cut(string(k), ":")
	return flow
}

// Fetcher loads the reference list of a scope from its source
type Fetcher interface {
	FetchReferenceList(ctx context.Context, key ScopeKey) ([]Entity, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, key ScopeKey) ([]Entity, error)

// FetchReferenceList calls f
func (f FetcherFunc) FetchReferenceList(ctx context.Context, key ScopeKey) ([]Entity, error) {
	return f(ctx, key)
}

// FetchError reports a failed fetch of a scope's list
type FetchError struct {
	Key ScopeKey
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch reference data for %q: %v", string(e.Key), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func cloneEntities(in []Entity) []Entity {
	if in == nil {
		return nil
	}
	out := make([]Entity, len(in))
	copy(out, in)
	for i := range out {
		if in[i].Values != nil {
			out[i].Values = append([]LabeledValue(nil), in[i].Values...)
		}
		out[i].Value = flow.CloneValue(in[i].Value)
	}
	return out
}
