package flow

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/flow.schema.json
var flowSchema []byte

// Parse decodes a YAML flow document
func Parse(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, errors.New("empty flow document")
	}

	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse flow YAML: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = make([]*Node, 0)
	}
	for _, n := range g.Nodes {
		if n.Config == nil {
			n.Config = Config{}
			continue
		}
		for k, v := range n.Config {
			n.Config[k] = PlainValue(v)
		}
	}
	return &g, nil
}

// Marshal encodes a flow document as YAML
func Marshal(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, errors.New("cannot marshal nil flow")
	}
	data, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal flow to YAML: %w", err)
	}
	return data, nil
}

// ValidateDocument checks a YAML flow document against the flow JSON schema
func ValidateDocument(data []byte) error {
	g, err := Parse(data)
	if err != nil {
		return err
	}

	jsonBytes, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to convert flow to JSON for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(flowSchema),
		gojsonschema.NewBytesLoader(jsonBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}
