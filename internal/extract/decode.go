package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ErrInvalidInput marks raw input that is not a JSON object or array.
var ErrInvalidInput = errors.New("invalid input")

// Decode parses a raw JSON document into a Node tree.
// The top level must be an object or an array.
func Decode(data []byte) (Node, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader parses a JSON document from r into a Node tree.
func DecodeReader(r io.Reader) (Node, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Node{}, fmt.Errorf("%w: empty document", ErrInvalidInput)
		}
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Node{}, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidInput)
	}

	switch raw.(type) {
	case map[string]any, []any:
		return NewNode(raw), nil
	case nil:
		return Node{}, fmt.Errorf("%w: top-level value is null", ErrInvalidInput)
	default:
		return Node{}, fmt.Errorf("%w: top-level value must be an object or array, got %T", ErrInvalidInput, raw)
	}
}
