package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	operrors "github.com/dshills/flowedit/pkg/errors"
	"github.com/dshills/flowedit/pkg/flow"
)

// NewNodeCommand creates the node command group
func NewNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect and edit the nodes of a flow",
	}

	cmd.AddCommand(newNodeListCommand())
	cmd.AddCommand(newNodeShowCommand())
	cmd.AddCommand(newNodeAddCommand())
	cmd.AddCommand(newNodeSetCommand())
	cmd.AddCommand(newNodeDeleteCommand())

	return cmd
}

func newNodeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <flow-name>",
		Short: "List the nodes of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args[0])
			if err != nil {
				return err
			}
			defer s.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tKIND\tLABEL")
			_, _ = fmt.Fprintln(w, "──\t────\t─────")
			for _, n := range s.store.Graph().Nodes {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", n.ID, n.Kind, n.Label)
			}
			return w.Flush()
		},
	}
}

func newNodeShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <flow-name> <node-id>",
		Short: "Show the editable fields of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args[0])
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.selectNode(args[1]); err != nil {
				return err
			}
			return printForm(cmd, s)
		},
	}
}

func newNodeAddCommand() *cobra.Command {
	var (
		label string
		after string
	)

	cmd := &cobra.Command{
		Use:   "add <flow-name> <kind>",
		Short: "Add a node with the default configuration of its kind",
		Long: `Add a node with the default configuration of its kind.

Kinds: ` + kindList() + `

Examples:
  flowedit node add order-intake llm --label "Summarize order"
  flowedit node add order-intake script --after <node-id>`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := flow.NodeKind(args[1])
			if !kind.Valid() {
				return fmt.Errorf("unknown node kind: %s\n\nKinds: %s", kind, kindList())
			}

			s, err := openSession(args[0])
			if err != nil {
				return err
			}
			defer s.close()

			node := flow.NewNode(kind, label)
			if err := s.store.AddNode(node); err != nil {
				return operrors.NewOperationalError("adding node", s.name, node.ID, err)
			}
			if after != "" {
				if _, err := s.store.AddEdge(after, node.ID); err != nil {
					return operrors.NewOperationalError("connecting node", s.name, node.ID, err)
				}
			}
			if err := s.save(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s node: %s\n", kind.DisplayName(), node.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Node label (default: the kind's name)")
	cmd.Flags().StringVar(&after, "after", "", "Connect the new node after this node")

	return cmd
}

func newNodeSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <flow-name> <node-id> <field=value>...",
		Short: "Edit node fields",
		Long: `Edit node fields as a form would.

Values are YAML, so lists and objects can be given inline. Fields not named
keep their values; structured fields are normalized for the node's kind.

Examples:
  flowedit node set order-intake <node-id> label="Fetch order" url=https://api/orders
  flowedit node set order-intake <node-id> 'messages=[{role: user, content: hi}]'`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			s, err := openSession(args[0])
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.selectNode(args[1]); err != nil {
				return err
			}
			s.form.EditMany(changed)

			if node := s.store.SelectedNode(); node != nil {
				if err := flow.ValidateNode(node); err != nil {
					_, _ = fmt.Fprintf(cmd.OutOrStderr(), "⚠ %v\n", err)
				}
			}
			if err := s.save(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated %s\n", s.syncer.PanelTitle())
			return nil
		},
	}
}

func newNodeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <flow-name> <node-id>",
		Short: "Delete a node and its edges",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args[0])
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.selectNode(args[1]); err != nil {
				return err
			}
			title := s.syncer.PanelTitle()
			if !s.syncer.HandleDelete() {
				return operrors.NewOperationalError("deleting node", s.name, args[1],
					errors.New("start and end nodes cannot be deleted"))
			}
			if err := s.save(); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", title)
			return nil
		},
	}
}

// parseAssignments reads field=value pairs; values are parsed as YAML
func parseAssignments(args []string) (flow.Values, error) {
	values := make(flow.Values, len(args))
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected field=value", arg)
		}

		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", field, err)
		}
		// labels and descriptions are always text
		if field == flow.LabelField || field == flow.DescriptionField || value == nil {
			value = raw
		}
		values[field] = value
	}
	return values, nil
}

func printForm(cmd *cobra.Command, s *session) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, s.syncer.PanelTitle())

	data, err := yaml.Marshal(s.form.Values())
	if err != nil {
		return fmt.Errorf("failed to render node: %w", err)
	}
	_, _ = fmt.Fprint(out, string(data))
	return nil
}

func kindList() string {
	kinds := flow.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
