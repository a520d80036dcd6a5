package approval

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Record is the permission granted to one web origin.
type Record struct {
	URLOrigin      string `json:"urlOrigin"`
	CanSkipApprove bool   `json:"canSkipApprove"`
}

// Metadata describes the caller of a dApp facing operation.
type Metadata struct {
	URLOrigin string `json:"urlOrigin" cbor:"url_origin"`
}

// Store is an insertion ordered map from origin to Record. Origins compare
// exactly, case included. The zero value is not usable, see NewStore.
type Store struct {
	order   []string
	records map[string]Record
}

func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

func (s *Store) Get(origin string) (Record, bool) {
	r, ok := s.records[origin]
	return r, ok
}

// Set inserts or replaces the record for r.URLOrigin. A replaced record keeps
// its position.
func (s *Store) Set(r Record) {
	if _, ok := s.records[r.URLOrigin]; !ok {
		s.order = append(s.order, r.URLOrigin)
	}
	s.records[r.URLOrigin] = r
}

// Delete removes origin and reports whether it was present.
func (s *Store) Delete(origin string) bool {
	if _, ok := s.records[origin]; !ok {
		return false
	}
	delete(s.records, origin)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == origin })
	return true
}

func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) Origins() []string {
	return slices.Clone(s.order)
}

func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.order))
	for _, o := range s.order {
		out = append(out, s.records[o])
	}
	return out
}

func (s *Store) Clone() *Store {
	c := NewStore()
	for _, r := range s.Records() {
		c.Set(r)
	}
	return c
}

type persistedRecord struct {
	CanSkipApprove bool `yaml:"can_skip_approve"`
}

// MarshalYAML encodes the store as a sequence of [origin, record] pairs so
// that the order survives a round trip.
func (s *Store) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, r := range s.Records() {
		value := &yaml.Node{}
		if err := value.Encode(persistedRecord{CanSkipApprove: r.CanSkipApprove}); err != nil {
			return nil, err
		}
		root.Content = append(root.Content, &yaml.Node{
			Kind: yaml.SequenceNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.URLOrigin},
				value,
			},
		})
	}
	return root, nil
}

func (s *Store) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: approvals must be a sequence", node.Line)
	}
	decoded := NewStore()
	for _, pair := range node.Content {
		if pair.Kind != yaml.SequenceNode || len(pair.Content) != 2 {
			return fmt.Errorf("line %d: approval must be an [origin, record] pair", pair.Line)
		}
		var origin string
		if err := pair.Content[0].Decode(&origin); err != nil {
			return fmt.Errorf("line %d: %w", pair.Line, err)
		}
		var rec persistedRecord
		if err := pair.Content[1].Decode(&rec); err != nil {
			return fmt.Errorf("line %d: %w", pair.Line, err)
		}
		decoded.Set(Record{URLOrigin: origin, CanSkipApprove: rec.CanSkipApprove})
	}
	*s = *decoded
	return nil
}

func encodeStore(s *Store) ([]byte, error) {
	return yaml.Marshal(s)
}

func decodeStore(data []byte) (*Store, error) {
	s := NewStore()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
