package editor

import (
	"sort"

	"github.com/dshills/flowedit/pkg/flow"
)

// MapForm is a headless Form backed by a value map. User edits go through
// Edit and EditMany, which raise OnChange the way an interactive form does.
type MapForm struct {
	values flow.Values

	// OnChange receives the edited fields and the complete value bag
	OnChange func(changed, all flow.Values)
}

// NewMapForm creates an empty form
func NewMapForm() *MapForm {
	return &MapForm{values: flow.Values{}}
}

// ResetFields clears every field
func (f *MapForm) ResetFields() {
	f.values = flow.Values{}
}

// SetFieldsValue sets the given fields, leaving the others untouched
func (f *MapForm) SetFieldsValue(values flow.Values) {
	if f.values == nil {
		f.values = flow.Values{}
	}
	for k, v := range values {
		f.values[k] = flow.CloneValue(v)
	}
}

// SetFieldValue sets a single field
func (f *MapForm) SetFieldValue(name string, value interface{}) {
	if f.values == nil {
		f.values = flow.Values{}
	}
	f.values[name] = flow.CloneValue(value)
}

// Value returns a copy of one field
func (f *MapForm) Value(name string) (interface{}, bool) {
	v, ok := f.values[name]
	if !ok {
		return nil, false
	}
	return flow.CloneValue(v), true
}

// Values returns a copy of every field
func (f *MapForm) Values() flow.Values {
	out := make(flow.Values, len(f.values))
	for k, v := range f.values {
		out[k] = flow.CloneValue(v)
	}
	return out
}

// Fields returns the field names in sorted order
func (f *MapForm) Fields() []string {
	names := make([]string, 0, len(f.values))
	for k := range f.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Edit applies a user edit of one field
func (f *MapForm) Edit(name string, value interface{}) {
	f.EditMany(flow.Values{name: value})
}

// EditMany applies a user edit of several fields at once
func (f *MapForm) EditMany(changed flow.Values) {
	f.SetFieldsValue(changed)
	if f.OnChange != nil {
		f.OnChange(changed, f.Values())
	}
}
