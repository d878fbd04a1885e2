package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind tags the shape of a Node.
type Kind uint8

const (
	// KindSkip is anything that is neither an object nor a list.
	KindSkip Kind = iota
	// KindLeaf is an object without children.
	KindLeaf
	// KindGroup is an object with at least one child.
	KindGroup
	// KindForest is a bare list of sibling nodes.
	KindForest
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindGroup:
		return "group"
	case KindForest:
		return "forest"
	default:
		return "skip"
	}
}

// Node is one resolved position in an element property tree.
// Name is already trimmed. Forest and skip nodes have no name.
type Node struct {
	Kind     Kind
	Name     string
	Value    any
	HasValue bool
	Children []Node
}

// NewNode resolves a decoded JSON value into a Node tree.
// Missing or mistyped "data" and "children" fields are treated as empty.
func NewNode(v any) Node {
	switch t := v.(type) {
	case []any:
		children := make([]Node, 0, len(t))
		for _, item := range t {
			children = append(children, NewNode(item))
		}
		return Node{Kind: KindForest, Children: children}
	case map[string]any:
		n := Node{Kind: KindLeaf}
		if data, ok := t["data"].(map[string]any); ok {
			if name, ok := data["Name"]; ok {
				n.Name = Stringify(name)
			}
			n.Value, n.HasValue = data["Value"]
		}
		if raw, ok := t["children"].([]any); ok && len(raw) > 0 {
			n.Kind = KindGroup
			n.Children = make([]Node, 0, len(raw))
			for _, item := range raw {
				n.Children = append(n.Children, NewNode(item))
			}
		}
		return n
	default:
		return Node{Kind: KindSkip}
	}
}

// Named reports whether the node is an object, which is the only shape that
// can carry a name.
func (n Node) Named() bool {
	return n.Kind == KindLeaf || n.Kind == KindGroup
}

// Stringify coerces a property value to its string form.
// Strings are trimmed. Numbers keep their literal text when decoded with
// UseNumber. null becomes the empty string. Objects and arrays are rendered
// as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
