package lastchange

import (
	"strings"
)

// Attribute is a single name/value pair from an instance record.
type Attribute struct {
	Name  string
	Value string
}

// AttributeSet is an ordered, read-only mapping of local element name to its
// "val" attribute. Names are unique; a repeated name keeps its first position
// and takes the last value.
//
// The zero value is an empty set.
type AttributeSet struct {
	attrs []Attribute
	index map[string]int
}

// NewAttributeSet builds a set from the given pairs, in order.
func NewAttributeSet(attrs ...Attribute) AttributeSet {
	var s AttributeSet
	for _, a := range attrs {
		s.set(a.Name, a.Value)
	}
	return s
}

func (s *AttributeSet) set(name, value string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.attrs[i].Value = value
		return
	}
	s.index[name] = len(s.attrs)
	s.attrs = append(s.attrs, Attribute{Name: name, Value: value})
}

// Get returns the value stored under name.
func (s AttributeSet) Get(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.attrs[i].Value, true
}

// Len returns the number of attributes.
func (s AttributeSet) Len() int {
	return len(s.attrs)
}

// Names returns attribute names in document order.
func (s AttributeSet) Names() []string {
	names := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		names[i] = a.Name
	}
	return names
}

// Attributes returns a copy of the pairs in document order.
func (s AttributeSet) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Each calls fn for every attribute in order until fn returns false.
func (s AttributeSet) Each(fn func(name, value string) bool) {
	for _, a := range s.attrs {
		if !fn(a.Name, a.Value) {
			return
		}
	}
}

// Map returns an unordered copy of the set.
func (s AttributeSet) Map() map[string]string {
	m := make(map[string]string, len(s.attrs))
	for _, a := range s.attrs {
		m[a.Name] = a.Value
	}
	return m
}

// String renders the set as "{Name: value, ...}" in document order.
func (s AttributeSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, a := range s.attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteString(": ")
		b.WriteString(a.Value)
	}
	b.WriteByte('}')
	return b.String()
}
