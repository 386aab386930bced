package value

// Map is an insertion-ordered string-keyed map of Values. The zero value is
// not usable; construct with NewMap.
type Map struct {
	keys []string
	idx  map[string]int
	vals []Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{idx: make(map[string]int)}
}

// Set inserts or overwrites key, preserving the position of the first
// insertion on overwrite.
func (m *Map) Set(key string, v Value) {
	if i, ok := m.idx[key]; ok {
		m.vals[i] = v
		return
	}
	m.idx[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, v)
}

// Get returns the value stored at key and whether it was present.
func (m *Map) Get(key string) (Value, bool) {
	i, ok := m.idx[key]
	if !ok {
		return Value{}, false
	}
	return m.vals[i], true
}

// Delete removes key if present, preserving the relative order of the rest.
func (m *Map) Delete(key string) {
	i, ok := m.idx[key]
	if !ok {
		return
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.vals = append(m.vals[:i], m.vals[i+1:]...)
	delete(m.idx, key)
	for k, v := range m.idx {
		if v > i {
			m.idx[k] = v - 1
		}
	}
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

// Range calls fn for every entry in insertion order, stopping early if fn
// returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	for i, k := range m.keys {
		if !fn(k, m.vals[i]) {
			return
		}
	}
}

// Equal reports whether m and other hold the same keys and values,
// irrespective of insertion order.
func (m *Map) Equal(other *Map) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Len() != other.Len() {
		return false
	}
	for i, k := range m.keys {
		ov, ok := other.Get(k)
		if !ok || !m.vals[i].Equal(ov) {
			return false
		}
	}
	return true
}
