package refdata

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Option is one selectable value in a picker
type Option struct {
	Label string
	Value string
	// Name of the entity the option belongs to
	Name  string
	Token string
	Kind  Kind
	// Detail is secondary text, such as a constant's value
	Detail string
}

// OptionGroup is a titled section of a picker
type OptionGroup struct {
	Label   string
	Options []Option
}

// Group labels for constants
const (
	ProjectConstantsLabel = "Project constants"
	FlowConstantsLabel    = "Flow constants"
)

// BuildEnumOptions groups the values of every enumeration under the enumeration's name.
// Groups are sorted by name; values keep their defined order. Entities that are
// not enumerations, and enumerations without values, are skipped.
func BuildEnumOptions(entities []Entity) []OptionGroup {
	enums := byName(entities, KindEnum)

	groups := make([]OptionGroup, 0, len(enums))
	for _, e := range enums {
		if len(e.Values) == 0 {
			continue
		}
		token := e.Token()
		options := make([]Option, 0, len(e.Values))
		for _, v := range e.Values {
			label := v.Label
			if label == "" {
				label = v.Value
			}
			options = append(options, Option{
				Label: label,
				Value: v.Value,
				Name:  e.Name,
				Token: token,
				Kind:  KindEnum,
			})
		}
		groups = append(groups, OptionGroup{Label: e.Name, Options: options})
	}
	return groups
}

// BuildConstantOptions groups constants by scope, project constants first.
// Selecting a constant inserts its token. Empty groups are omitted.
func BuildConstantOptions(entities []Entity) []OptionGroup {
	var project, flow []Option
	for _, e := range byName(entities, KindConstant) {
		opt := Option{
			Label:  e.Name,
			Value:  e.Token(),
			Name:   e.Name,
			Token:  e.Token(),
			Kind:   KindConstant,
			Detail: formatValue(e.Value),
		}
		if e.Scope == ScopeFlow {
			flow = append(flow, opt)
		} else {
			project = append(project, opt)
		}
	}

	groups := make([]OptionGroup, 0, 2)
	if len(project) > 0 {
		groups = append(groups, OptionGroup{Label: ProjectConstantsLabel, Options: project})
	}
	if len(flow) > 0 {
		groups = append(groups, OptionGroup{Label: FlowConstantsLabel, Options: flow})
	}
	return groups
}

// FilterOptions keeps the options whose label, name or token contains query,
// ignoring case. Groups left empty are dropped. A blank query keeps everything.
func FilterOptions(groups []OptionGroup, query string) []OptionGroup {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]OptionGroup, 0, len(groups))
	for _, g := range groups {
		kept := make([]Option, 0, len(g.Options))
		for _, o := range g.Options {
			if query == "" || matches(o, query) {
				kept = append(kept, o)
			}
		}
		if len(kept) > 0 {
			out = append(out, OptionGroup{Label: g.Label, Options: kept})
		}
	}
	return out
}

func matches(o Option, query string) bool {
	for _, s := range []string{o.Label, o.Name, o.Token} {
		if strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

func byName(entities []Entity, kind Kind) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Kind == kind && e.Name != "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
