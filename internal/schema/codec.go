package schema

import (
	"encoding/json"
	"fmt"
)

func (d Document) normalized() Document {
	out := d.clone()
	if out.Tables == nil {
		out.Tables = []Table{}
	}
	if out.Relationships == nil {
		out.Relationships = []Relationship{}
	}
	return out
}

// ExportJSON serializes the document with two-space indentation. Field order
// follows the struct declarations, so equal documents yield equal text.
func ExportJSON(d Document) (string, error) {
	b, err := json.MarshalIndent(d.normalized(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	return string(b), nil
}

// ParseDocument reads a document produced by ExportJSON or stored by a backend.
func ParseDocument(b []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("parse schema document: %w", err)
	}
	return d.normalized(), nil
}
