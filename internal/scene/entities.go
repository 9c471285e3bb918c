package scene

// EntitySet is an insertion-ordered, duplicate-free set of entities.
// Iteration order is stable so that seeded runs are reproducible.
type EntitySet struct {
	order []Entity
	index map[Entity]bool
}

// NewEntitySet builds a set from the given entities, dropping duplicates.
func NewEntitySet(entities ...Entity) *EntitySet {
	s := &EntitySet{index: make(map[Entity]bool, len(entities))}
	for _, e := range entities {
		s.Add(e)
	}
	return s
}

// Add inserts e and reports whether it was new.
func (s *EntitySet) Add(e Entity) bool {
	if s.index == nil {
		s.index = make(map[Entity]bool)
	}
	if s.index[e] {
		return false
	}
	s.index[e] = true
	s.order = append(s.order, e)
	return true
}

// Has reports whether e is in the set.
func (s *EntitySet) Has(e Entity) bool {
	return s != nil && s.index[e]
}

// Len returns the number of entities.
func (s *EntitySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Slice returns a copy of the entities in insertion order.
func (s *EntitySet) Slice() []Entity {
	if s == nil {
		return nil
	}
	out := make([]Entity, len(s.order))
	copy(out, s.order)
	return out
}

// Clone returns an independent copy of the set.
func (s *EntitySet) Clone() *EntitySet {
	return NewEntitySet(s.Slice()...)
}
