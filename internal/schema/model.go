package schema

import (
	"encoding/json"
	"fmt"
)

// Vec3 is a table position in scene coordinates.
type Vec3 [3]float64

// Column describes one column of a table. Identity inside a table is positional;
// ID is a stable handle callers may use to re-resolve the position.
type Column struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Unique     bool   `json:"unique"`
	PrimaryKey bool   `json:"primaryKey"`
	ForeignKey string `json:"foreignKey,omitempty"` // raw REFERENCES target, legacy
}

// UnmarshalJSON defaults nullable to true when the field is absent.
func (c *Column) UnmarshalJSON(b []byte) error {
	type plain Column
	p := plain{Nullable: true}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Column(p)
	return nil
}

// Table is a schema table.
type Table struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Color    string   `json:"color"`
	Position Vec3     `json:"position"`
	Columns  []Column `json:"columns,omitempty"`
}

// Relationship is a weak reference between two tables by id.
type Relationship struct {
	ID               string `json:"id,omitempty"`
	From             string `json:"from"`
	To               string `json:"to"`
	ForeignKeyColumn string `json:"foreignKeyColumn,omitempty"`
	FromColumn       string `json:"fromColumn,omitempty"`
	ToColumn         string `json:"toColumn,omitempty"`
}

// Document is the persisted part of the schema graph.
type Document struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
}

// Snapshot is a read-only copy of the store state, including transient UI fields.
type Snapshot struct {
	Document
	Selected    *string `json:"selected"`
	ConnectMode *string `json:"connectMode"`
}

// TableByID returns the table with the given id.
func (d Document) TableByID(id string) (Table, bool) {
	for _, t := range d.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return Table{}, false
}

func (d Document) clone() Document {
	out := Document{
		Tables:        make([]Table, len(d.Tables)),
		Relationships: append([]Relationship{}, d.Relationships...),
	}
	for i, t := range d.Tables {
		if t.Columns != nil {
			t.Columns = append([]Column{}, t.Columns...)
		}
		out.Tables[i] = t
	}
	return out
}

// CheckTableIDs reports the first table id that occurs more than once.
func (d Document) CheckTableIDs() error {
	seen := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if seen[t.ID] {
			return fmt.Errorf("table %q: %w", t.ID, ErrDuplicateID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Default color for tables created through the editor.
const DefaultTableColor = "#3b82f6"

// DefaultDocument is the schema a fresh or unreadable state starts from.
func DefaultDocument() Document {
	return Document{
		Tables: []Table{
			{ID: "cuboid1", Name: "Box 1", Color: "#7D70BA", Position: Vec3{-6, 0, 0}},
			{ID: "cuboid2", Name: "Box 2", Color: "#10b981", Position: Vec3{6, 0, 0}},
			{ID: "cuboid3", Name: "Box 3", Color: "#ef4444", Position: Vec3{0, 8, 0}},
		},
		Relationships: []Relationship{},
	}
}
