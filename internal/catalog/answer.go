package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Answer is either an option index or free text. The zero value is an
// empty text answer.
type Answer struct {
	index   int
	text    string
	isIndex bool
}

// IndexAnswer returns an answer selecting option i.
func IndexAnswer(i int) Answer {
	return Answer{index: i, isIndex: true}
}

// TextAnswer returns a free-text answer.
func TextAnswer(s string) Answer {
	return Answer{text: s}
}

// Index reports the option index, if the answer is one.
func (a Answer) Index() (int, bool) {
	return a.index, a.isIndex
}

// IsIndex reports whether the answer selects an option.
func (a Answer) IsIndex() bool {
	return a.isIndex
}

// String renders the answer as text; indexes are formatted in decimal.
func (a Answer) String() string {
	if a.isIndex {
		return strconv.Itoa(a.index)
	}
	return a.text
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.isIndex {
		return []byte(strconv.Itoa(a.index)), nil
	}
	return json.Marshal(a.text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = Answer{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	}

	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("answer must be an integer index or a string, got %s", data)
	}
	*a = IndexAnswer(i)
	return nil
}

func (a *Answer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: answer must be a scalar", node.Line)
	}
	if node.Tag == "!!int" {
		i, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid answer index %q", node.Line, node.Value)
		}
		*a = IndexAnswer(i)
		return nil
	}
	*a = TextAnswer(node.Value)
	return nil
}
