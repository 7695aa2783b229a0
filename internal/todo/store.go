// Package todo holds chore and shopping lists with optimistic edits.
//
// A mutation is applied to the local lists immediately and then written to
// the backend. If the write fails the local change is rolled back. Between
// the two steps local and remote state may differ.
package todo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	appLog "famboard/internal/log"
)

var (
	ErrNotFound   = errors.New("todo item not found")
	ErrNotPending = errors.New("mutation is no longer pending")
	ErrDuplicate  = errors.New("todo item already exists")
	ErrNoBackend  = errors.New("todo store has no backend")
)

// RawItem is a backend list entry. Due information arrives in whichever of
// the three due fields the backend happens to use.
type RawItem struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Due         string `json:"due,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	DueDateTime string `json:"due_datetime,omitempty"`
}

type Item struct {
	ID          string  `json:"id"`
	Summary     string  `json:"summary"`
	Description string  `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	Due         DueInfo `json:"due"`
}

// Backend performs the remote writes.
type Backend interface {
	AddItem(ctx context.Context, listID string, item Item) error
	UpdateItem(ctx context.Context, listID string, item Item) error
	RemoveItem(ctx context.Context, listID string, itemID string) error
}

type MutationKind string

const (
	MutationAdd      MutationKind = "add"
	MutationUpdate   MutationKind = "update"
	MutationComplete MutationKind = "complete"
	MutationRemove   MutationKind = "remove"
)

type Mutation struct {
	Kind   MutationKind
	ListID string
	// Item carries the new state; for complete and remove only ID is read.
	Item Item
}

type State string

const (
	StatePending   State = "pending"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

type list struct {
	version uint64
	items   []Item
}

type Store struct {
	mu       sync.Mutex
	lists    map[string]*list
	backend  Backend
	location *time.Location
}

func NewStore(backend Backend, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{
		lists:    make(map[string]*list),
		backend:  backend,
		location: loc,
	}
}

// Load replaces a list with fetched items when version is newer than the
// one held. It returns false for stale results.
func (s *Store) Load(listID string, version uint64, raws []RawItem) bool {
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		items = append(items, s.fromRaw(listID, raw))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[listID]; ok && version <= l.version {
		appLog.Debug("todo: discarding stale list", "list", listID, "version", version, "current", l.version)
		return false
	}
	s.lists[listID] = &list{version: version, items: items}
	return true
}

func (s *Store) fromRaw(listID string, raw RawItem) Item {
	due := ParseDue(raw, s.location)
	if due.IsError() {
		appLog.Debug("todo: ignoring unreadable due date", "list", listID, "uid", raw.UID, "err", due.Error())
	}
	id := raw.UID
	if id == "" {
		id = uuid.NewString()
	}
	return Item{
		ID:          id,
		Summary:     raw.Summary,
		Description: raw.Description,
		Completed:   raw.Status == "completed",
		Due:         due.OrElse(NoDue()),
	}
}

// Items returns a copy of the list.
func (s *Store) Items(listID string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lists[listID]; ok {
		return slices.Clone(l.items)
	}
	return nil
}

// Lists returns the known list IDs, sorted.
func (s *Store) Lists() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.lists))
	for id := range s.lists {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Item returns one item of a list.
func (s *Store) Item(listID, itemID string) (Item, error) {
	for _, it := range s.Items(listID) {
		if it.ID == itemID {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%q in %q: %w", itemID, listID, ErrNotFound)
}

// DueOn returns the open items of a list due on day.
func (s *Store) DueOn(listID string, day time.Time) []Item {
	var out []Item
	for _, it := range s.Items(listID) {
		if !it.Completed && it.Due.DueOn(day) {
			out = append(out, it)
		}
	}
	return out
}

// Pending is an optimistic change that has been applied locally.
type Pending struct {
	ID       string
	Mutation Mutation

	store *Store
	state State
	// prev is the item before the change; nil for adds.
	prev      *Item
	prevIndex int
}

func (p *Pending) State() State {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	return p.state
}

// Commit marks the change as confirmed by the backend.
func (p *Pending) Commit() error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if p.state != StatePending {
		return ErrNotPending
	}
	p.state = StateCommitted
	return nil
}

// Rollback restores the pre-change state of the item.
func (p *Pending) Rollback() error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.state != StatePending {
		return ErrNotPending
	}
	p.state = StateFailed

	l := s.list(p.Mutation.ListID)
	idx := slices.IndexFunc(l.items, func(it Item) bool { return it.ID == p.Mutation.Item.ID })
	switch {
	case p.prev == nil:
		if idx >= 0 {
			l.items = slices.Delete(l.items, idx, idx+1)
		}
	case idx >= 0:
		l.items[idx] = *p.prev
	default:
		at := min(p.prevIndex, len(l.items))
		l.items = slices.Insert(l.items, at, *p.prev)
	}
	return nil
}

// Apply performs m on the local state and returns the pending change.
func (s *Store) Apply(m Mutation) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Kind == MutationAdd && m.Item.ID == "" {
		m.Item.ID = uuid.NewString()
	}
	l := s.list(m.ListID)
	p := &Pending{ID: uuid.NewString(), Mutation: m, store: s, state: StatePending}

	idx := slices.IndexFunc(l.items, func(it Item) bool { return it.ID == m.Item.ID })
	if m.Kind == MutationAdd && idx >= 0 {
		return nil, fmt.Errorf("add %q in %q: %w", m.Item.ID, m.ListID, ErrDuplicate)
	}
	if m.Kind != MutationAdd {
		if idx < 0 {
			return nil, fmt.Errorf("%s %q in %q: %w", m.Kind, m.Item.ID, m.ListID, ErrNotFound)
		}
		prev := l.items[idx]
		p.prev = &prev
		p.prevIndex = idx
	}

	switch m.Kind {
	case MutationAdd:
		l.items = append(l.items, m.Item)
	case MutationUpdate:
		l.items[idx] = m.Item
	case MutationComplete:
		l.items[idx].Completed = true
		p.Mutation.Item = l.items[idx]
	case MutationRemove:
		l.items = slices.Delete(l.items, idx, idx+1)
	default:
		return nil, fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
	return p, nil
}

// Do applies m, writes it to the backend and commits, or rolls back and
// returns the backend error. Without a backend nothing is applied.
func (s *Store) Do(ctx context.Context, m Mutation) (*Pending, error) {
	if s.backend == nil {
		return nil, ErrNoBackend
	}
	p, err := s.Apply(m)
	if err != nil {
		return nil, err
	}

	m = p.Mutation
	switch m.Kind {
	case MutationAdd:
		err = s.backend.AddItem(ctx, m.ListID, m.Item)
	case MutationUpdate, MutationComplete:
		err = s.backend.UpdateItem(ctx, m.ListID, m.Item)
	case MutationRemove:
		err = s.backend.RemoveItem(ctx, m.ListID, m.Item.ID)
	}
	if err != nil {
		appLog.Error("todo: remote write failed, rolling back", err, "list", m.ListID, "kind", m.Kind, "item", m.Item.ID)
		_ = p.Rollback()
		return p, fmt.Errorf("%s item in %q: %w", m.Kind, m.ListID, err)
	}
	_ = p.Commit()
	return p, nil
}

// list returns the named list, creating it. Caller holds s.mu.
func (s *Store) list(id string) *list {
	l, ok := s.lists[id]
	if !ok {
		l = &list{}
		s.lists[id] = l
	}
	return l
}
