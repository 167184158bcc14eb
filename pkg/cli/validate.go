package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/flowedit/pkg/flow"
)

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate <flow-name>",
		Short: "Validate a flow",
		Long: `Validate a flow file for correctness.

This checks:
- Document structure against the flow schema
- Exactly one start node and at least one end node
- Edges reference existing nodes
- Variable names, types and uniqueness
- Node configurations (expressions, JSON samples, required fields)

Examples:
  flowedit validate order-intake
  flowedit validate order-intake --verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			out, errOut := cmd.OutOrStdout(), cmd.OutOrStderr()

			path := filepath.Join(GetFlowsDir(), name+".yaml")
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("flow not found: %s\n\nLooked in: %s", name, path)
			}
			if err != nil {
				return fmt.Errorf("failed to read flow: %w", err)
			}

			if err := flow.ValidateDocument(data); err != nil {
				_, _ = fmt.Fprintln(errOut, "✗ Flow document invalid")
				if verbose {
					_, _ = fmt.Fprintf(errOut, "  Error: %v\n", err)
				}
				return err
			}
			_, _ = fmt.Fprintln(out, "✓ Flow document valid")

			g, err := flow.Parse(data)
			if err != nil {
				return err
			}

			if err := g.Validate(); err != nil {
				_, _ = fmt.Fprintln(errOut, "✗ Flow validation failed")
				if verbose {
					_, _ = fmt.Fprintf(errOut, "  Error: %v\n", err)
				}
				return err
			}
			_, _ = fmt.Fprintln(out, "✓ Flow structure valid")
			_, _ = fmt.Fprintf(out, "✓ %d nodes, %d edges\n", len(g.Nodes), len(g.Edges))

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed validation output")

	return cmd
}
