package flow

// Form field names shared by every node kind
const (
	LabelField       = "label"
	DescriptionField = "description"
)

// Node is a single step of a flow graph
type Node struct {
	ID          string   `json:"id" yaml:"id"`
	Kind        NodeKind `json:"kind" yaml:"kind"`
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Config      Config   `json:"config,omitempty" yaml:"config,omitempty"`
}

// NewNode creates a node of the given kind with a fresh id and the kind's default configuration
func NewNode(kind NodeKind, label string) *Node {
	if label == "" {
		label = kind.DisplayName()
	}
	return &Node{
		ID:     NewID(),
		Kind:   kind,
		Label:  label,
		Config: DefaultConfig(kind),
	}
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Config = n.Config.Clone()
	return &c
}

// FormValues flattens the node into the bag a form is seeded with:
// label, description and every configuration field.
func (n *Node) FormValues() Values {
	values := make(Values, len(n.Config)+2)
	for k, v := range n.Config {
		values[k] = CloneValue(v)
	}
	values[LabelField] = n.Label
	values[DescriptionField] = n.Description
	return values
}

// DefaultConfig returns the initial configuration for a node kind
func DefaultConfig(kind NodeKind) Config {
	switch kind {
	case KindStart:
		return Config{VariablesKey: []Variable{}}
	case KindEnd:
		return Config{OutputVariablesKey: []Variable{}}
	case KindAPICall:
		return Config{"method": "GET", "url": "", "headers": []interface{}{}, "timeoutMs": 30000}
	case KindQueueProducer:
		return Config{"topic": "", "payload": ""}
	case KindScript:
		return Config{"language": "javascript", "source": ""}
	case KindCondition:
		return Config{"condition": ""}
	case KindTransform:
		return Config{"input": "", "expression": ""}
	case KindSubFlow:
		return Config{"flowId": "", "inputMappings": []interface{}{}, VariablesKey: []Variable{}}
	case KindLoop:
		return Config{"collection": "", "itemVariable": "item", "breakCondition": ""}
	case KindLLM:
		return Config{"model": "", "temperature": 0.7, "messages": []interface{}{}}
	case KindVectorStore:
		return Config{"operation": "query", "collection": "", "topK": 5}
	case KindAssign:
		return Config{"assignments": []interface{}{}}
	case KindParse:
		return Config{"source": "", "sample": "", "outputFields": []interface{}{}}
	case KindFingerprint:
		return Config{"algorithm": "sha256", "fields": []interface{}{}}
	case KindKeywordMatch:
		return Config{"input": "", "keywords": []interface{}{}, "caseSensitive": false}
	case KindNote:
		return Config{"text": ""}
	default:
		return Config{}
	}
}

// NodePatch is a partial update of a node. Nil fields are left unchanged;
// a non-nil Config replaces the node's configuration as a whole.
type NodePatch struct {
	Label       *string
	Description *string
	Config      Config
}

// Apply shallow-merges the patch into the node
func (p NodePatch) Apply(n *Node) {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if p.Config != nil {
		n.Config = p.Config.Clone()
	}
}
