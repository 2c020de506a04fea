package metabolic

type mark struct {
	id    uint64
	start int
}

type journal struct {
	undo   []func()
	marks  []mark
	nextID uint64
}

// Scope groups model edits. Closing it reverts, in reverse order, every edit
// made since it was opened, including those made in nested scopes.
type Scope struct {
	model *Model
	id    uint64
}

// Begin opens a scope. Callers close it with defer so that error and panic
// paths also restore the previous state.
func (m *Model) Begin() *Scope {
	m.journal.nextID++
	m.journal.marks = append(m.journal.marks, mark{id: m.journal.nextID, start: len(m.journal.undo)})
	return &Scope{model: m, id: m.journal.nextID}
}

// Close is idempotent. Closing an outer scope closes every scope nested in it.
func (s *Scope) Close() {
	j := &s.model.journal
	pos := -1
	for i := len(j.marks) - 1; i >= 0; i-- {
		if j.marks[i].id == s.id {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	start := j.marks[pos].start
	for i := len(j.undo) - 1; i >= start; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:start]
	j.marks = j.marks[:pos]
}

// WithScope runs fn inside a scope that is reverted when fn returns.
func (m *Model) WithScope(fn func() error) error {
	s := m.Begin()
	defer s.Close()
	return fn()
}

// InScope reports whether an edit would currently be recorded.
func (m *Model) InScope() bool { return len(m.journal.marks) > 0 }

func (m *Model) record(undo func()) {
	if len(m.journal.marks) == 0 {
		return
	}
	m.journal.undo = append(m.journal.undo, undo)
}

// recordStructure records an edit that adds or removes model entities. The
// derived exchange set is dropped now and again when the edit is reverted.
func (m *Model) recordStructure(undo func()) {
	m.exchanges.Store(nil)
	m.record(func() {
		undo()
		m.exchanges.Store(nil)
	})
}
