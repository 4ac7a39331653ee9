package schema

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"visubase/internal/layout"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")
	ErrInvalid     = errors.New("invalid input")
)

// Persister receives a snapshot after every committed mutation.
type Persister interface {
	Persist(Snapshot) error
}

// Store is the single owner of the schema graph. Every mutation replaces the
// affected sequences under the write lock, so readers only ever observe
// complete states.
type Store struct {
	mu          sync.RWMutex
	doc         Document
	selected    *string
	connectMode *string
	persister   Persister
	entropy     io.Reader
}

// NewStore takes ownership of doc. p may be nil. A repeated table id is
// renamed so every id names exactly one table; relationships keep resolving
// to the first table that carried it.
func NewStore(doc Document, p Persister) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Store{
		doc:       doc.clone(),
		persister: p,
		entropy:   ulid.Monotonic(src, 0),
	}
	s.dedupeTableIDsLocked()
	s.assignIDsLocked()
	return s
}

func (s *Store) dedupeTableIDsLocked() {
	seen := make(map[string]bool, len(s.doc.Tables))
	for i, t := range s.doc.Tables {
		if seen[t.ID] {
			id := "table_" + s.newID()
			log.Printf("schema: duplicate table id %q renamed to %s", t.ID, id)
			s.doc.Tables[i].ID = id
		}
		seen[s.doc.Tables[i].ID] = true
	}
}

// newID must be called with the write lock held; monotonic entropy is not goroutine safe.
func (s *Store) newID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

func (s *Store) assignIDsLocked() {
	for ti := range s.doc.Tables {
		for ci := range s.doc.Tables[ti].Columns {
			if s.doc.Tables[ti].Columns[ci].ID == "" {
				s.doc.Tables[ti].Columns[ci].ID = "col_" + s.newID()
			}
		}
	}
	for i := range s.doc.Relationships {
		if s.doc.Relationships[i].ID == "" {
			s.doc.Relationships[i].ID = "rel_" + s.newID()
		}
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Document: s.doc.clone()}
	if s.selected != nil {
		v := *s.selected
		snap.Selected = &v
	}
	if s.connectMode != nil {
		v := *s.connectMode
		snap.ConnectMode = &v
	}
	return snap
}

// commitLocked hands the new state to the persister. Persistence failures are
// logged; the in-memory state stays authoritative.
func (s *Store) commitLocked() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Persist(s.snapshotLocked()); err != nil {
		log.Printf("schema: persist failed: %v", err)
	}
}

func (s *Store) tableIndexLocked(id string) int {
	for i, t := range s.doc.Tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Document returns a deep copy of the persisted part of the state.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.clone()
}

// Replace swaps the whole graph, e.g. after loading a project. Transient UI
// state is cleared. A document with a repeated table id is rejected and the
// current graph stays in place.
func (s *Store) Replace(doc Document) error {
	if err := doc.CheckTableIDs(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.clone()
	s.selected, s.connectMode = nil, nil
	s.assignIDsLocked()
	s.commitLocked()
	return nil
}

// AddTable appends t. An empty id is generated; an id already present is rejected.
func (s *Store) AddTable(t Table) (Table, error) {
	if strings.TrimSpace(t.Name) == "" {
		return Table{}, fmt.Errorf("table name is empty: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = "table_" + s.newID()
	} else if s.tableIndexLocked(t.ID) >= 0 {
		return Table{}, fmt.Errorf("table %q: %w", t.ID, ErrDuplicateID)
	}
	if t.Color == "" {
		t.Color = DefaultTableColor
	}
	if t.Columns != nil {
		cols := make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			if c.ID == "" {
				c.ID = "col_" + s.newID()
			}
			cols[i] = c
		}
		t.Columns = cols
	}

	tables := make([]Table, 0, len(s.doc.Tables)+1)
	tables = append(tables, s.doc.Tables...)
	s.doc.Tables = append(tables, t)
	s.commitLocked()
	return t, nil
}

// CreateTable adds an empty table positioned by its creation order.
func (s *Store) CreateTable(name string) (Table, error) {
	s.mu.RLock()
	n := len(s.doc.Tables)
	s.mu.RUnlock()
	return s.AddTable(Table{
		Name:     name,
		Color:    DefaultTableColor,
		Position: Vec3(layout.PositionFor(n)),
		Columns:  []Column{},
	})
}

// mapTable applies fn to a copy of the table with the given id and installs a
// fresh table sequence.
func (s *Store) mapTable(id string, fn func(*Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.tableIndexLocked(id)
	if idx < 0 {
		return fmt.Errorf("table %q: %w", id, ErrNotFound)
	}
	t := s.doc.Tables[idx]
	if t.Columns != nil {
		t.Columns = append([]Column{}, t.Columns...)
	}
	if err := fn(&t); err != nil {
		return err
	}
	tables := append([]Table{}, s.doc.Tables...)
	tables[idx] = t
	s.doc.Tables = tables
	s.commitLocked()
	return nil
}

// RenameTable sets the display name. Names need not be unique.
func (s *Store) RenameTable(id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("table name is empty: %w", ErrInvalid)
	}
	return s.mapTable(id, func(t *Table) error {
		t.Name = name
		return nil
	})
}

// UpdateTablePosition replaces the coordinates and nothing else.
func (s *Store) UpdateTablePosition(id string, pos Vec3) error {
	return s.mapTable(id, func(t *Table) error {
		t.Position = pos
		return nil
	})
}

// DeleteTable removes the table and every relationship touching it in one step.
func (s *Store) DeleteTable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tableIndexLocked(id) < 0 {
		return fmt.Errorf("table %q: %w", id, ErrNotFound)
	}
	tables := make([]Table, 0, len(s.doc.Tables)-1)
	for _, t := range s.doc.Tables {
		if t.ID != id {
			tables = append(tables, t)
		}
	}
	rels := make([]Relationship, 0, len(s.doc.Relationships))
	for _, r := range s.doc.Relationships {
		if r.From != id && r.To != id {
			rels = append(rels, r)
		}
	}
	s.doc.Tables, s.doc.Relationships = tables, rels
	if s.selected != nil && *s.selected == id {
		s.selected = nil
	}
	if s.connectMode != nil && *s.connectMode == id {
		s.connectMode = nil
	}
	s.commitLocked()
	return nil
}

// AddColumn appends c to the table's columns.
func (s *Store) AddColumn(tableID string, c Column) (Column, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Column{}, fmt.Errorf("column name is empty: %w", ErrInvalid)
	}
	err := s.mapTable(tableID, func(t *Table) error {
		if c.ID == "" {
			c.ID = "col_" + s.newID()
		}
		t.Columns = append(t.Columns, c)
		return nil
	})
	return c, err
}

// UpdateColumn replaces the column at index. The column keeps its id unless c carries one.
func (s *Store) UpdateColumn(tableID string, index int, c Column) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("column name is empty: %w", ErrInvalid)
	}
	return s.mapTable(tableID, func(t *Table) error {
		if index < 0 || index >= len(t.Columns) {
			return fmt.Errorf("column %d of table %q: %w", index, tableID, ErrNotFound)
		}
		if c.ID == "" {
			c.ID = t.Columns[index].ID
		}
		t.Columns[index] = c
		return nil
	})
}

// DeleteColumn removes the column at index; later columns shift down.
func (s *Store) DeleteColumn(tableID string, index int) error {
	return s.mapTable(tableID, func(t *Table) error {
		if index < 0 || index >= len(t.Columns) {
			return fmt.Errorf("column %d of table %q: %w", index, tableID, ErrNotFound)
		}
		t.Columns = append(t.Columns[:index:index], t.Columns[index+1:]...)
		return nil
	})
}

// ColumnIndex resolves a column id to its current position.
func (s *Store) ColumnIndex(tableID, columnID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.tableIndexLocked(tableID)
	if idx < 0 {
		return -1, false
	}
	for i, c := range s.doc.Tables[idx].Columns {
		if c.ID == columnID {
			return i, true
		}
	}
	return -1, false
}

// AddRelationship appends r. Both endpoints must exist; self references and
// parallel edges are allowed.
func (s *Store) AddRelationship(r Relationship) (Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addRelationshipLocked(&r); err != nil {
		return Relationship{}, err
	}
	s.commitLocked()
	return r, nil
}

func (s *Store) addRelationshipLocked(r *Relationship) error {
	if s.tableIndexLocked(r.From) < 0 {
		return fmt.Errorf("source table %q: %w", r.From, ErrNotFound)
	}
	if s.tableIndexLocked(r.To) < 0 {
		return fmt.Errorf("target table %q: %w", r.To, ErrNotFound)
	}
	if r.ID == "" {
		r.ID = "rel_" + s.newID()
	}
	rels := make([]Relationship, 0, len(s.doc.Relationships)+1)
	rels = append(rels, s.doc.Relationships...)
	s.doc.Relationships = append(rels, *r)
	return nil
}

// DeleteRelationship removes the relationship at index; later entries shift down by one.
func (s *Store) DeleteRelationship(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.doc.Relationships) {
		return fmt.Errorf("relationship %d: %w", index, ErrNotFound)
	}
	rels := make([]Relationship, 0, len(s.doc.Relationships)-1)
	rels = append(rels, s.doc.Relationships[:index]...)
	s.doc.Relationships = append(rels, s.doc.Relationships[index+1:]...)
	s.commitLocked()
	return nil
}

// UpdateRelationship replaces the column options of the relationship at index.
// Endpoints are kept.
func (s *Store) UpdateRelationship(index int, fkColumn, fromColumn, toColumn string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.doc.Relationships) {
		return fmt.Errorf("relationship %d: %w", index, ErrNotFound)
	}
	rels := append([]Relationship{}, s.doc.Relationships...)
	rels[index].ForeignKeyColumn = fkColumn
	rels[index].FromColumn = fromColumn
	rels[index].ToColumn = toColumn
	s.doc.Relationships = rels
	s.commitLocked()
	return nil
}

// RelationshipIndex resolves a relationship id to its current position.
func (s *Store) RelationshipIndex(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, r := range s.doc.Relationships {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}

// SetSelected marks a table as selected; an empty id clears the selection.
func (s *Store) SetSelected(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.selected = nil
		return nil
	}
	if s.tableIndexLocked(id) < 0 {
		return fmt.Errorf("table %q: %w", id, ErrNotFound)
	}
	s.selected = &id
	return nil
}

// SetConnectMode marks a table as the pending source of a connection; an empty id clears it.
func (s *Store) SetConnectMode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.connectMode = nil
		return nil
	}
	if s.tableIndexLocked(id) < 0 {
		return fmt.Errorf("table %q: %w", id, ErrNotFound)
	}
	s.connectMode = &id
	return nil
}

// ClickTable applies a click on a table. With a pending connection from another
// table it creates the relationship and returns it; a click on the pending
// source cancels; otherwise the table becomes selected.
func (s *Store) ClickTable(id string) (*Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tableIndexLocked(id) < 0 {
		return nil, fmt.Errorf("table %q: %w", id, ErrNotFound)
	}

	switch {
	case s.connectMode != nil && *s.connectMode != id:
		r := Relationship{From: *s.connectMode, To: id}
		if err := s.addRelationshipLocked(&r); err != nil {
			s.connectMode = nil
			return nil, err
		}
		s.connectMode, s.selected = nil, nil
		s.commitLocked()
		return &r, nil
	case s.connectMode != nil:
		s.connectMode = nil
	default:
		s.selected = &id
	}
	return nil, nil
}
