package domain

import (
	"fmt"
	"regexp"
	"sort"
)

// Keys of the namespaces shipped with the default vocabulary.
const (
	NamespaceJRU  = "jru"
	NamespaceETCS = "etcs"
	NamespaceDRU  = "dru"
)

var namespaceKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// reservedKeys would collide with the fixed tables of the store.
var reservedKeys = map[string]struct{}{"file": {}, "s": {}}

// Namespace describes one bracketed section of a decoded message and the
// closed set of attribute names it may carry.
type Namespace struct {
	Key         string   `yaml:"key" json:"key"`
	Marker      string   `yaml:"marker" json:"marker"`
	StripPrefix bool     `yaml:"strip_prefix" json:"strip_prefix"`
	Attributes  []string `yaml:"attributes" json:"attributes"`
}

// Vocabulary is the master attribute vocabulary: every namespace the parser
// recognizes, in the order their tables are created and read back.
type Vocabulary struct {
	Namespaces []Namespace `yaml:"namespaces" json:"namespaces"`
}

// Namespace returns the namespace with the given key.
func (v Vocabulary) Namespace(key string) (Namespace, bool) {
	for _, ns := range v.Namespaces {
		if ns.Key == key {
			return ns, true
		}
	}
	return Namespace{}, false
}

// Keys returns the namespace keys in declaration order.
func (v Vocabulary) Keys() []string {
	keys := make([]string, len(v.Namespaces))
	for i, ns := range v.Namespaces {
		keys[i] = ns.Key
	}
	return keys
}

// AttributeSet returns the vocabulary as a set of names per namespace.
func (v Vocabulary) AttributeSet() AttributeSet {
	set := NewAttributeSet()
	for _, ns := range v.Namespaces {
		set.Ensure(ns.Key)
		for _, attr := range ns.Attributes {
			set.Add(ns.Key, attr)
		}
	}
	return set
}

// Validate checks the vocabulary for structural correctness.
func (v Vocabulary) Validate() []error {
	var errs []error

	if len(v.Namespaces) == 0 {
		errs = append(errs, fmt.Errorf("vocabulary must define at least one namespace"))
	}

	keys := make(map[string]struct{}, len(v.Namespaces))
	markers := make(map[string]string, len(v.Namespaces))
	for i, ns := range v.Namespaces {
		switch {
		case ns.Key == "":
			errs = append(errs, fmt.Errorf("namespace #%d: key is required", i+1))
		case !namespaceKeyPattern.MatchString(ns.Key):
			errs = append(errs, fmt.Errorf("namespace %q: key must match %s", ns.Key, namespaceKeyPattern))
		}
		if _, ok := reservedKeys[ns.Key]; ok {
			errs = append(errs, fmt.Errorf("namespace %q: key is reserved", ns.Key))
		}
		if _, dup := keys[ns.Key]; dup && ns.Key != "" {
			errs = append(errs, fmt.Errorf("namespace %q: duplicate key", ns.Key))
		}
		keys[ns.Key] = struct{}{}

		if ns.Marker == "" {
			errs = append(errs, fmt.Errorf("namespace %q: marker is required", ns.Key))
		} else if other, dup := markers[ns.Marker]; dup {
			errs = append(errs, fmt.Errorf("namespace %q: marker %q already used by %q", ns.Key, ns.Marker, other))
		} else {
			markers[ns.Marker] = ns.Key
		}

		seen := make(map[string]struct{}, len(ns.Attributes))
		for _, attr := range ns.Attributes {
			if attr == "" {
				errs = append(errs, fmt.Errorf("namespace %q: empty attribute name", ns.Key))
				continue
			}
			if _, dup := seen[attr]; dup {
				errs = append(errs, fmt.Errorf("namespace %q: duplicate attribute %q", ns.Key, attr))
			}
			seen[attr] = struct{}{}
		}
	}

	return errs
}

// AttributeSet holds distinct attribute names per namespace key.
type AttributeSet map[string]map[string]struct{}

// NewAttributeSet returns an empty set.
func NewAttributeSet() AttributeSet {
	return make(AttributeSet)
}

// Ensure registers a namespace even if it has no attributes yet.
func (s AttributeSet) Ensure(namespace string) {
	if _, ok := s[namespace]; !ok {
		s[namespace] = make(map[string]struct{})
	}
}

// Add records an attribute name under a namespace.
func (s AttributeSet) Add(namespace, name string) {
	s.Ensure(namespace)
	s[namespace][name] = struct{}{}
}

// Contains reports whether the name is recorded under the namespace.
func (s AttributeSet) Contains(namespace, name string) bool {
	_, ok := s[namespace][name]
	return ok
}

// Sorted returns the names recorded under a namespace in lexical order.
func (s AttributeSet) Sorted(namespace string) []string {
	names := make([]string, 0, len(s[namespace]))
	for name := range s[namespace] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Namespaces returns the recorded namespace keys in lexical order.
func (s AttributeSet) Namespaces() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
