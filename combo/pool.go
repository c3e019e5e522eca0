package combo

// comboList is a pooled result list. Lists are stored behind a pointer so
// every consumer of a memoized use shares appends.
type comboList struct {
	items []*Composite
}

// Pool is the per-event arena for composites and result lists. Acquire
// pops a free list entry or allocates; RecycleAll returns everything
// acquired since the last reset, skipping exported composites, whose
// ownership left the engine. Not safe for concurrent use.
type Pool struct {
	freeCombos []*Composite
	freeLists  []*comboList

	liveCombos []*Composite
	liveLists  []*comboList

	seq uint32
}

// NewPool creates a pool with capacity pre-allocated composites.
func NewPool(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	p := &Pool{
		freeCombos: make([]*Composite, 0, capacity),
		liveCombos: make([]*Composite, 0, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.freeCombos = append(p.freeCombos, &Composite{})
	}

	return p
}

// Composite acquires a cleared composite with the next event-local
// sequence number.
func (p *Pool) Composite() *Composite {
	var c *Composite
	if n := len(p.freeCombos); n > 0 {
		c = p.freeCombos[n-1]
		p.freeCombos = p.freeCombos[:n-1]
	} else {
		c = &Composite{}
	}
	p.seq++
	c.reset(p.seq)
	p.liveCombos = append(p.liveCombos, c)

	return c
}

// List acquires an empty result list.
func (p *Pool) List() *comboList {
	var l *comboList
	if n := len(p.freeLists); n > 0 {
		l = p.freeLists[n-1]
		p.freeLists = p.freeLists[:n-1]
		l.items = l.items[:0]
	} else {
		l = &comboList{}
	}
	p.liveLists = append(p.liveLists, l)

	return l
}

// RecycleAll returns every live, non-exported composite and every live
// list to the free lists and resets the sequence counter. Reports how
// many composites were recycled and how many left through Export.
func (p *Pool) RecycleAll() (recycled, exported int) {
	for _, c := range p.liveCombos {
		if c.exported {
			exported++

			continue
		}
		p.freeCombos = append(p.freeCombos, c)
		recycled++
	}
	p.liveCombos = p.liveCombos[:0]
	for _, l := range p.liveLists {
		l.items = l.items[:0]
		p.freeLists = append(p.freeLists, l)
	}
	p.liveLists = p.liveLists[:0]
	p.seq = 0

	return recycled, exported
}

// Size reports the current free and live composite counts.
func (p *Pool) Size() (free, live int) {
	return len(p.freeCombos), len(p.liveCombos)
}
