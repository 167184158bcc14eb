package main

import (
	"fmt"
	"os"

	"github.com/dshills/flowedit/pkg/flow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <flow-file>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, path := range os.Args[1:] {
		if err := check(path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func check(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := flow.ValidateDocument(data); err != nil {
		return err
	}

	g, err := flow.Parse(data)
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}

	vars := 0
	for _, n := range g.Nodes {
		vars += len(flow.DecodeVariables(n.Config[flow.VariablesKey]))
		vars += len(flow.DecodeVariables(n.Config[flow.OutputVariablesKey]))
	}

	fmt.Printf("✓ Flow '%s' v%s is valid\n", g.Name, g.Version)
	fmt.Printf("  - Nodes: %d\n", len(g.Nodes))
	fmt.Printf("  - Edges: %d\n", len(g.Edges))
	fmt.Printf("  - Variables: %d\n", vars)
	return nil
}
