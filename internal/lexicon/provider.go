package lexicon

import "sync/atomic"

// Provider hands out the tables in effect. A turn reads Current once and
// uses that snapshot throughout, so a reload never splits a turn.
type Provider interface {
	Current() *Tables
}

// Current makes a fixed *Tables usable as a Provider.
func (t *Tables) Current() *Tables { return t }

// Holder is a Provider whose tables can be swapped at runtime.
type Holder struct {
	p atomic.Pointer[Tables]
}

func NewHolder(t *Tables) *Holder {
	h := &Holder{}
	h.p.Store(t)
	return h
}

func (h *Holder) Current() *Tables {
	return h.p.Load()
}

// Swap installs t and returns the tables it replaced.
func (h *Holder) Swap(t *Tables) *Tables {
	return h.p.Swap(t)
}
