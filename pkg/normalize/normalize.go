// Package normalize reshapes a node's merged configuration after a form edit so
// that structured sub-fields stay well formed.
//
// A Pipeline holds an ordered list of rules per node kind. Rules are pure:
// they never mutate their inputs, never fail, and applying a pipeline to its own
// output yields the same output. Fields no rule names pass through untouched.
package normalize

import (
	"github.com/dshills/flowedit/pkg/flow"
)

// Input is everything a rule may look at
type Input struct {
	// Kind of the node being edited
	Kind flow.NodeKind
	// Merged is the node's previous configuration overlaid with the current form values
	Merged flow.Config
	// Changed is the subset of form values the user just edited
	Changed flow.Values
	// Previous is the node's configuration before the edit
	Previous flow.Config
}

// Rule rewrites one aspect of the configuration. It receives a private copy of the
// merged configuration in out and may modify it freely.
type Rule func(in Input, out flow.Config)

// Pipeline maps node kinds to the rules applied on every edit
type Pipeline struct {
	rules map[flow.NodeKind][]Rule
}

// New creates an empty pipeline
func New() *Pipeline {
	return &Pipeline{rules: make(map[flow.NodeKind][]Rule)}
}

// Default returns the pipeline for the built-in node kinds
func Default() *Pipeline {
	p := New()
	p.Register(flow.KindStart, PreserveUnlessChanged(flow.VariablesKey))
	p.Register(flow.KindEnd, PreserveUnlessChanged(flow.OutputVariablesKey))
	p.Register(flow.KindSubFlow, PreserveUnlessChanged("inputMappings"), PreserveUnlessChanged(flow.VariablesKey))
	p.Register(flow.KindParse, PreserveUnlessChanged("outputFields"))
	p.Register(flow.KindAPICall, PreserveUnlessChanged("headers"))
	p.Register(flow.KindKeywordMatch, PreserveUnlessChanged("keywords"))
	p.Register(flow.KindFingerprint, PreserveUnlessChanged("fields"))
	p.Register(flow.KindAssign, PreserveUnlessChanged("assignments"))
	p.Register(flow.KindLLM, RenormalizeMessages("messages"))
	return p
}

// Register appends rules for a node kind
func (p *Pipeline) Register(kind flow.NodeKind, rules ...Rule) {
	p.rules[kind] = append(p.rules[kind], rules...)
}

// HasRules reports whether any rule is registered for kind
func (p *Pipeline) HasRules(kind flow.NodeKind) bool {
	return len(p.rules[kind]) > 0
}

// Normalize applies the kind's rules to a copy of merged and returns the result.
// Kinds without rules get a plain copy.
func (p *Pipeline) Normalize(kind flow.NodeKind, merged flow.Config, changed flow.Values, previous flow.Config) flow.Config {
	out := merged.Clone()
	if out == nil {
		out = flow.Config{}
	}
	if p == nil {
		return out
	}

	in := Input{Kind: kind, Merged: merged, Changed: changed, Previous: previous}
	for _, rule := range p.rules[kind] {
		rule(in, out)
	}
	return out
}

// PreserveUnlessChanged guards a structured list field against stale form values.
//
// When the edit does not name the field, the previous value is kept verbatim.
// When it does and the new value is a sequence, the new value wins. Otherwise the
// previous value is restored, or the field is dropped when there was none.
// Element shapes are not inspected.
func PreserveUnlessChanged(field string) Rule {
	return func(in Input, out flow.Config) {
		prev, hadPrev := in.Previous[field]

		if _, named := in.Changed[field]; !named {
			if hadPrev {
				out[field] = flow.CloneValue(prev)
			} else if !flow.IsSequence(out[field]) {
				delete(out, field)
			}
			return
		}

		if flow.IsSequence(out[field]) {
			return
		}
		if hadPrev {
			out[field] = flow.CloneValue(prev)
			return
		}
		delete(out, field)
	}
}
