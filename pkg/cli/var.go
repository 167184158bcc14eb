package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	operrors "github.com/dshills/flowedit/pkg/errors"
	"github.com/dshills/flowedit/pkg/flow"
)

// NewVarCommand creates the var command group
func NewVarCommand() *cobra.Command {
	var output bool

	cmd := &cobra.Command{
		Use:   "var",
		Short: "Edit the variables of a start, end or sub-flow node",
		Long: `Edit the ordered variable list of a node.

Start and sub-flow nodes carry input variables, end nodes carry output
variables. --output selects the output list explicitly.`,
	}

	cmd.PersistentFlags().BoolVar(&output, "output", false, "Edit the output variable list")

	listKey := func() string {
		if output {
			return flow.OutputVariablesKey
		}
		return ""
	}

	cmd.AddCommand(newVarListCommand(listKey))
	cmd.AddCommand(newVarAddCommand(listKey))
	cmd.AddCommand(newVarRemoveCommand(listKey))
	cmd.AddCommand(newVarMoveCommand(listKey))

	return cmd
}

// openVariables opens a session bound to the node and points its controller at the list
func openVariables(flowName, nodeID, list string) (*session, error) {
	s, err := openSession(flowName)
	if err != nil {
		return nil, err
	}
	if err := s.selectNode(nodeID); err != nil {
		s.close()
		return nil, err
	}
	s.vars.SetList(list)
	if s.vars.ListKey() == "" {
		node := s.store.SelectedNode()
		s.close()
		return nil, operrors.NewOperationalError("editing variables", flowName, nodeID,
			fmt.Errorf("%s nodes have no such variable list", node.Kind.DisplayName()))
	}
	return s, nil
}

func newVarListCommand(listKey func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <flow-name> <node-id>",
		Short: "List variables in order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openVariables(args[0], args[1], listKey())
			if err != nil {
				return err
			}
			defer s.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tTYPE\tDEFAULT\tDESCRIPTION")
			_, _ = fmt.Fprintln(w, "────\t────\t───────\t───────────")
			for _, v := range s.vars.List() {
				def := ""
				if v.DefaultValue != nil {
					def = fmt.Sprint(v.DefaultValue)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, v.Type, def, v.Description)
			}
			return w.Flush()
		},
	}
}

func newVarAddCommand(listKey func() string) *cobra.Command {
	var (
		varType     string
		defaultRaw  string
		description string
		replace     string
	)

	cmd := &cobra.Command{
		Use:   "add <flow-name> <node-id> <name>",
		Short: "Add a variable, or replace one in place with --replace",
		Long: `Add a variable at the end of the list, or replace one in place with --replace.

Examples:
  flowedit var add order-intake <start-id> orderId --type string
  flowedit var add order-intake <start-id> retries --type number --default 3
  flowedit var add order-intake <start-id> orderRef --replace orderId`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := flow.Variable{Name: args[2], Type: varType, Description: description}
			if cmd.Flags().Changed("default") {
				if err := yaml.Unmarshal([]byte(defaultRaw), &v.DefaultValue); err != nil {
					return fmt.Errorf("invalid default value: %w", err)
				}
			}
			if err := v.Validate(); err != nil {
				return err
			}

			s, err := openVariables(args[0], args[1], listKey())
			if err != nil {
				return err
			}
			defer s.close()

			// uniqueness is checked here, before the controller writes
			next := s.vars.List()
			var editing *flow.Variable
			replaced := false
			if replace != "" {
				editing = &flow.Variable{Name: replace}
				for i := range next {
					if next[i].Name == replace {
						next[i] = v
						replaced = true
					}
				}
			}
			if !replaced {
				next = append(next, v)
			}
			if err := flow.ValidateVariableList(next); err != nil {
				return err
			}

			s.vars.Save(v, editing)
			if err := s.save(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved variable %s\n", v.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&varType, "type", "t", "", "Variable type (string, number, boolean, object, array, any)")
	cmd.Flags().StringVar(&defaultRaw, "default", "", "Default value (YAML)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Variable description")
	cmd.Flags().StringVar(&replace, "replace", "", "Replace the variable with this name, keeping its position")

	return cmd
}

func newVarRemoveCommand(listKey func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <flow-name> <node-id> <name>",
		Short: "Remove a variable",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openVariables(args[0], args[1], listKey())
			if err != nil {
				return err
			}
			defer s.close()

			if !s.vars.Remove(args[2]) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No variable named %s\n", args[2])
				return nil
			}
			if err := s.save(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed variable %s\n", args[2])
			return nil
		},
	}
}

func newVarMoveCommand(listKey func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "move <flow-name> <node-id> <name> <over>",
		Short: "Move a variable to the position of another",
		Long: `Move a variable to the position of another, shifting the ones in between.

Example, with variables [a b c d]:
  flowedit var move order-intake <start-id> b d   # [a c d b]`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openVariables(args[0], args[1], listKey())
			if err != nil {
				return err
			}
			defer s.close()

			if !s.vars.Reorder(args[2], args[3]) {
				return operrors.NewOperationalError("moving variable", s.name, args[1],
					errors.New("nothing to move: names must differ and both exist"))
			}
			if err := s.save(); err != nil {
				return err
			}

			for _, v := range s.vars.List() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), v.Name)
			}
			return nil
		},
	}
}
