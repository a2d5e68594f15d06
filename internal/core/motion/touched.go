package motion

import "github.com/zeusync/replica/internal/core/entity"

// Touched is the ordered set of entities whose pose changed in a frame.
type Touched struct {
	ids  []entity.ID
	seen map[entity.ID]struct{}
}

func NewTouched() *Touched {
	return &Touched{seen: make(map[entity.ID]struct{})}
}

// Add records id once, keeping first-touch order.
func (t *Touched) Add(id entity.ID) {
	if _, ok := t.seen[id]; ok {
		return
	}
	t.seen[id] = struct{}{}
	t.ids = append(t.ids, id)
}

func (t *Touched) Has(id entity.ID) bool {
	if t == nil {
		return false
	}
	_, ok := t.seen[id]
	return ok
}

func (t *Touched) IDs() []entity.ID {
	if t == nil {
		return nil
	}
	return t.ids
}

func (t *Touched) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}
