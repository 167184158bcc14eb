package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/flowedit/pkg/refdata"
)

// NewRefDataCommand creates the refdata command group
func NewRefDataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "refdata",
		Aliases: []string{"ref"},
		Short:   "Manage enumerations and constants referenced by node forms",
		Long: `Manage the reference data of a project.

Enumerations and constants live at project scope, or at flow scope with
--flow. A flow sees its project's entities plus its own.`,
	}

	cmd.AddCommand(newEnumCommand())
	cmd.AddCommand(newConstCommand())
	cmd.AddCommand(newRefDeleteCommand())
	cmd.AddCommand(newOptionsCommand())

	return cmd
}

func newEnumCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enum",
		Short: "Manage enumerations",
	}

	var (
		flowName    string
		description string
	)
	add := &cobra.Command{
		Use:   "add <name> <value[:label]>...",
		Short: "Create an enumeration",
		Example: `  flowedit refdata enum add Priority low:Low high:High
  flowedit refdata enum add Region eu us --flow checkout`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]refdata.LabeledValue, 0, len(args)-1)
			for _, arg := range args[1:] {
				value, label, _ := strings.Cut(arg, ":")
				values = append(values, refdata.LabeledValue{Label: label, Value: value})
			}
			e := &refdata.Entity{
				Kind:        refdata.KindEnum,
				Name:        args[0],
				Values:      values,
				FlowID:      flowName,
				Description: description,
			}
			return createEntity(cmd, e)
		},
	}
	add.Flags().StringVar(&flowName, "flow", "", "Scope the enumeration to a flow")
	add.Flags().StringVarP(&description, "description", "d", "", "Enumeration description")

	cmd.AddCommand(add)
	cmd.AddCommand(newRefListCommand(refdata.KindEnum))
	return cmd
}

func newConstCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "const",
		Short: "Manage constants",
	}

	var (
		flowName    string
		valueType   string
		description string
	)
	add := &cobra.Command{
		Use:   "add <name> <value>",
		Short: "Create a constant",
		Long: `Create a constant. The value is parsed as YAML, so numbers, booleans and
JSON objects keep their type.`,
		Example: `  flowedit refdata const add API_URL https://api.example.com
  flowedit refdata const add TIMEOUT 30 --type number
  flowedit refdata const add LIMITS '{"max": 3}' --type json --flow checkout`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value interface{}
			if valueType == "string" {
				value = args[1]
			} else if err := yaml.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("invalid constant value: %w", err)
			}
			e := &refdata.Entity{
				Kind:        refdata.KindConstant,
				Name:        args[0],
				ValueType:   valueType,
				Value:       value,
				FlowID:      flowName,
				Description: description,
			}
			return createEntity(cmd, e)
		},
	}
	add.Flags().StringVar(&flowName, "flow", "", "Scope the constant to a flow")
	add.Flags().StringVarP(&valueType, "type", "t", "", "Value type (string, number, boolean, json)")
	add.Flags().StringVarP(&description, "description", "d", "", "Constant description")

	cmd.AddCommand(add)
	cmd.AddCommand(newRefListCommand(refdata.KindConstant))
	return cmd
}

// createEntity stores e in the current project and drops the cached lists it appears in
func createEntity(cmd *cobra.Command, e *refdata.Entity) error {
	if _, err := projectScope(e.FlowID); err != nil {
		return err
	}
	repo, cache, err := referenceData()
	if err != nil {
		return err
	}
	defer closeReferenceData()

	e.ProjectID = GlobalConfig.Project
	if err := repo.Create(cmd.Context(), e); err != nil {
		return err
	}
	if e.FlowID == "" {
		cache.InvalidateProject(e.ProjectID)
	} else {
		cache.Invalidate(refdata.NewScopeKey(e.ProjectID, e.FlowID))
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s %s (%s)\n", e.Kind, e.Name, e.ID)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Reference it as %s\n", e.Token())
	return nil
}

func newRefListCommand(kind refdata.Kind) *cobra.Command {
	var flowName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s entities visible in the project or a flow", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := projectScope(flowName)
			if err != nil {
				return err
			}
			_, cache, err := referenceData()
			if err != nil {
				return err
			}
			defer closeReferenceData()

			list, err := cache.Get(cmd.Context(), key)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tSCOPE\tVALUE\tID")
			_, _ = fmt.Fprintln(w, "────\t─────\t─────\t──")
			for _, e := range list {
				if e.Kind != kind {
					continue
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Scope, entitySummary(e), e.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&flowName, "flow", "", "Include entities of this flow")
	return cmd
}

func entitySummary(e refdata.Entity) string {
	if e.Kind == refdata.KindEnum {
		values := make([]string, 0, len(e.Values))
		for _, v := range e.Values {
			values = append(values, v.Value)
		}
		return strings.Join(values, ", ")
	}
	switch v := e.Value.(type) {
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func newRefDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an enumeration or constant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cache, err := referenceData()
			if err != nil {
				return err
			}
			defer closeReferenceData()

			e, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := repo.Delete(cmd.Context(), e.ID); err != nil {
				return err
			}
			cache.InvalidateProject(e.ProjectID)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s %s\n", e.Kind, e.Name)
			return nil
		},
	}
}

func newOptionsCommand() *cobra.Command {
	var (
		flowName string
		query    string
		kind     string
	)

	cmd := &cobra.Command{
		Use:   "options",
		Short: "Show the picker options a node form would offer",
		Long: `Show the picker options a node form would offer: enumeration values grouped by
enumeration, and constants grouped by scope with the token each one inserts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if kind != "" && kind != string(refdata.KindEnum) && kind != string(refdata.KindConstant) {
				return fmt.Errorf("invalid kind %q: use enum or constant", kind)
			}
			key, err := projectScope(flowName)
			if err != nil {
				return err
			}
			_, cache, err := referenceData()
			if err != nil {
				return err
			}
			defer closeReferenceData()

			ctx := cmd.Context()
			keys := []refdata.ScopeKey{key}
			if flowName != "" {
				keys = append(keys, refdata.NewScopeKey(GlobalConfig.Project, ""))
			}
			if err := cache.Warm(ctx, keys...); err != nil {
				return err
			}

			sub := cache.Watch(ctx, nil)
			defer sub.Close()
			sub.SetScope(key)
			st := sub.State()
			if st.Err != nil {
				return st.Err
			}

			var groups []refdata.OptionGroup
			if kind == "" || kind == string(refdata.KindEnum) {
				groups = append(groups, refdata.BuildEnumOptions(st.Items)...)
			}
			if kind == "" || kind == string(refdata.KindConstant) {
				groups = append(groups, refdata.BuildConstantOptions(st.Items)...)
			}
			printOptions(cmd.OutOrStdout(), refdata.FilterOptions(groups, query))
			return nil
		},
	}

	cmd.Flags().StringVar(&flowName, "flow", "", "Include options of this flow")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter options by label, name or token")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show enum or constant options")

	return cmd
}

func printOptions(out io.Writer, groups []refdata.OptionGroup) {
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(out, "No options")
		return
	}
	for _, g := range groups {
		_, _ = fmt.Fprintf(out, "%s\n", g.Label)
		for _, o := range g.Options {
			switch {
			case o.Detail != "":
				_, _ = fmt.Fprintf(out, "  %s = %s  %s\n", o.Label, o.Detail, o.Token)
			case o.Kind == refdata.KindEnum:
				_, _ = fmt.Fprintf(out, "  %s (%s)\n", o.Label, o.Value)
			default:
				_, _ = fmt.Fprintf(out, "  %s  %s\n", o.Label, o.Token)
			}
		}
	}
}
