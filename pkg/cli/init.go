package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/flowedit/pkg/flow"
	"github.com/dshills/flowedit/pkg/validation"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "init <flow-name>",
		Short: "Create a new flow",
		Long: `Create a new flow with a start node connected to an end node.

The flow is created in ~/.flowedit/flows/<flow-name>.yaml

Examples:
  flowedit init order-intake
  flowedit init billing --description "Monthly billing run"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := validation.ValidateName(name); err != nil {
				return fmt.Errorf("invalid flow name: %w", err)
			}

			repo, err := openFlowRepository()
			if err != nil {
				return err
			}
			if repo.Exists(name) {
				return fmt.Errorf("flow already exists: %s", name)
			}

			g, err := flow.NewGraph(name, description)
			if err != nil {
				return fmt.Errorf("failed to create flow: %w", err)
			}
			g.ProjectID = GlobalConfig.Project

			if err := repo.Save(g); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "✓ Created flow: %s\n", name)
			_, _ = fmt.Fprintf(out, "  Location: %s/%s.yaml\n", repo.Dir(), name)
			_, _ = fmt.Fprintln(out, "\nNext steps:")
			_, _ = fmt.Fprintf(out, "  1. Add a node: flowedit node add %s script --after <node-id>\n", name)
			_, _ = fmt.Fprintf(out, "  2. Validate: flowedit validate %s\n", name)

			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Flow description")

	return cmd
}
