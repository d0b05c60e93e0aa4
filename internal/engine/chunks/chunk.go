// Package chunks reconstructs the webpack module chunks registered by the
// bundle files of a downloaded application.
package chunks

import (
	"bytes"
	"fmt"
	"sort"

	"chunkmap/internal/shared/jsonutil"

	"github.com/go-json-experiment/json/jsontext"
)

// Chunk is one webpack module as reconstructed from bundle source.
type Chunk struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	File          string   `json:"file"`
	Code          string   `json:"code"`
	Imports       []string `json:"imports"`
	Exports       []string `json:"exports"`
	ContainsFetch bool     `json:"containsFetch"`
	IsAxiosClient bool     `json:"isAxiosClient"`

	// Offset and Line locate Code inside File.
	Offset int `json:"offset"`
	Line   int `json:"line"`
}

// HasImport reports whether the chunk requests id.
func (c *Chunk) HasImport(id string) bool {
	for _, imp := range c.Imports {
		if imp == id {
			return true
		}
	}
	return false
}

func (c *Chunk) HasExport(name string) bool {
	for _, exp := range c.Exports {
		if exp == name {
			return true
		}
	}
	return false
}

// Set is the chunk mapping of one analysis run. Iteration follows insertion
// order, which is the order chunks were found on disk.
type Set struct {
	order []string
	byID  map[string]*Chunk
}

func NewSet() *Set {
	return &Set{byID: make(map[string]*Chunk)}
}

// Add registers c unless its id is already taken. It reports whether c was
// added.
func (s *Set) Add(c *Chunk) bool {
	if c == nil {
		return false
	}
	if _, exists := s.byID[c.ID]; exists {
		return false
	}
	s.byID[c.ID] = c
	s.order = append(s.order, c.ID)
	return true
}

func (s *Set) Get(id string) (*Chunk, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.byID[id]
	return c, ok
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *Set) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns the chunks in insertion order.
func (s *Set) All() []*Chunk {
	if s == nil {
		return nil
	}
	out := make([]*Chunk, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Filter returns the chunks accepted by keep, in insertion order.
func (s *Set) Filter(keep func(*Chunk) bool) []*Chunk {
	var out []*Chunk
	for _, c := range s.All() {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Files returns the distinct originating files, sorted.
func (s *Set) Files() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range s.All() {
		if c.File == "" || seen[c.File] {
			continue
		}
		seen[c.File] = true
		out = append(out, c.File)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as an object keyed by chunk id, keeping
// insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonutil.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := jsonutil.Marshal(s.byID[id])
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Set) UnmarshalJSON(data []byte) error {
	dec := jsontext.NewDecoder(bytes.NewReader(data))
	tok, err := dec.ReadToken()
	if err != nil {
		return err
	}
	if tok.Kind() != '{' {
		return fmt.Errorf("chunk map must be a JSON object, got %v", tok.Kind())
	}
	s.order = nil
	s.byID = make(map[string]*Chunk)
	for dec.PeekKind() != '}' {
		name, err := dec.ReadToken()
		if err != nil {
			return err
		}
		raw, err := dec.ReadValue()
		if err != nil {
			return err
		}
		var c Chunk
		if err := jsonutil.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("chunk %s: %w", name.String(), err)
		}
		if c.ID == "" {
			c.ID = name.String()
		}
		s.Add(&c)
	}
	_, err = dec.ReadToken()
	return err
}
