package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLint(t *testing.T) {
	d := Document{
		Tables: []Table{
			{ID: "a", Name: "A"},
			{ID: "b", Name: "B", Columns: []Column{
				{Name: "x", Type: "text"},
				{Name: "X", Type: "blob"},
			}},
		},
		Relationships: []Relationship{
			{From: "a", To: "ghost"},
			{From: "b", To: "b"},
		},
	}
	known := func(s string) bool { return s == "text" }

	codes := map[string]int{}
	for _, is := range Lint(d, known) {
		codes[is.Code]++
	}
	assert.Equal(t, map[string]int{
		IssueNoColumns:        1,
		IssueDuplicateColumn:  1,
		IssueUnknownType:      1,
		IssueDanglingRelation: 1,
		IssueSelfRelation:     1,
	}, codes)
}

func TestLintCleanDocument(t *testing.T) {
	d := Document{Tables: []Table{{ID: "a", Name: "A", Columns: []Column{{Name: "id", Type: "serial"}}}}}
	assert.Empty(t, Lint(d, nil))
}
