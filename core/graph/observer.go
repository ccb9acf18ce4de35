package graph

// ChangeKind describes what an observer has to refresh.
type ChangeKind int

const (
	// Structural means boxes or transitions were added or removed.
	Structural ChangeKind = iota
	// Data means box contents, positions or selection changed.
	Data
	// ModifiedFlag means the document's modified flag was set or cleared.
	ModifiedFlag
)

func (k ChangeKind) String() string {
	switch k {
	case Structural:
		return "structural"
	case Data:
		return "data"
	case ModifiedFlag:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is a typed notification sent to observers.
type Change struct {
	Kind     ChangeKind
	Modified bool
}

// Observer receives model changes.
type Observer interface {
	ModelChanged(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// ModelChanged calls f.
func (f ObserverFunc) ModelChanged(c Change) { f(c) }

// AddObserver registers o.
func (m *Model) AddObserver(o Observer) {
	m.observers = append(m.observers, o)
}

// RemoveObserver unregisters o. Function observers cannot be compared and
// are never removed.
func (m *Model) RemoveObserver(o Observer) {
	if _, isFunc := o.(ObserverFunc); isFunc {
		return
	}
	for i, cur := range m.observers {
		if _, isFunc := cur.(ObserverFunc); isFunc {
			continue
		}
		if cur == o {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return
		}
	}
}

// emit queues changes and delivers them in order. Changes raised by an
// observer while a delivery is running are queued behind the current batch.
func (m *Model) emit(changes ...Change) {
	m.pending = append(m.pending, changes...)
	if m.dispatching {
		return
	}
	m.dispatching = true
	defer func() { m.dispatching = false }()
	for len(m.pending) > 0 {
		c := m.pending[0]
		m.pending = m.pending[1:]
		for _, o := range m.observers {
			o.ModelChanged(c)
		}
	}
}
