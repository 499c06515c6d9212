package domain

// Attributes is an insertion-ordered mapping of attribute name to raw value.
// Setting an existing name replaces its value and keeps its position.
type Attributes struct {
	keys   []string
	values map[string]string
}

// NewAttributes returns an empty mapping.
func NewAttributes() *Attributes {
	return &Attributes{values: make(map[string]string)}
}

// AttributesOf builds a mapping from alternating name/value pairs.
func AttributesOf(pairs ...string) *Attributes {
	a := NewAttributes()
	for i := 0; i+1 < len(pairs); i += 2 {
		a.Set(pairs[i], pairs[i+1])
	}
	return a
}

// Set stores value under name.
func (a *Attributes) Set(name, value string) {
	if _, ok := a.values[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.values[name] = value
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.values[name]
	return v, ok
}

// Len returns the number of distinct names.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Keys returns the names in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	keys := make([]string, len(a.keys))
	copy(keys, a.keys)
	return keys
}

// Each calls fn for every pair in insertion order.
func (a *Attributes) Each(fn func(name, value string)) {
	if a == nil {
		return
	}
	for _, k := range a.keys {
		fn(k, a.values[k])
	}
}

// Equal reports whether both mappings hold the same pairs in the same order.
func (a *Attributes) Equal(b *Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	for i, k := range a.keys {
		if b.keys[i] != k || b.values[k] != a.values[k] {
			return false
		}
	}
	return true
}

// MessageRecord is one `Msg` block of a decoded text artifact. Sections holds
// one mapping per namespace that carried at least one attribute.
type MessageRecord struct {
	LocalID  int64
	Sections map[string]*Attributes
}

// Section returns the attributes recorded for a namespace, or nil.
func (r MessageRecord) Section(namespace string) *Attributes {
	return r.Sections[namespace]
}
