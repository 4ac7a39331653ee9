package schema

import (
	"fmt"
	"strings"
)

// Issue codes reported by Lint.
const (
	IssueNoColumns        = "no_columns"
	IssueUnknownType      = "unknown_type"
	IssueDuplicateColumn  = "duplicate_column"
	IssueDanglingRelation = "dangling_relationship"
	IssueSelfRelation     = "self_relationship"
)

type Issue struct {
	Table   string `json:"table,omitempty"`
	Column  string `json:"column,omitempty"`
	Index   *int   `json:"relationship,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint reports schema smells. None of them blocks synthesis: tables without
// columns get fallback columns and dangling relationships are skipped.
// knownType may be nil to skip type checks.
func Lint(d Document, knownType func(string) bool) []Issue {
	var issues []Issue

	for _, t := range d.Tables {
		if len(t.Columns) == 0 {
			issues = append(issues, Issue{
				Table:   t.ID,
				Code:    IssueNoColumns,
				Message: fmt.Sprintf("table %q has no columns; id/created_at will be generated", t.Name),
			})
		}
		seen := map[string]struct{}{}
		for _, c := range t.Columns {
			key := strings.ToLower(c.Name)
			if _, dup := seen[key]; dup {
				issues = append(issues, Issue{
					Table:   t.ID,
					Column:  c.Name,
					Code:    IssueDuplicateColumn,
					Message: fmt.Sprintf("column %q appears more than once in %q", c.Name, t.Name),
				})
			}
			seen[key] = struct{}{}

			if knownType != nil && !knownType(c.Type) {
				issues = append(issues, Issue{
					Table:   t.ID,
					Column:  c.Name,
					Code:    IssueUnknownType,
					Message: fmt.Sprintf("type %q is not in the catalog", c.Type),
				})
			}
		}
	}

	for i, r := range d.Relationships {
		i := i
		_, okFrom := d.TableByID(r.From)
		_, okTo := d.TableByID(r.To)
		if !okFrom || !okTo {
			issues = append(issues, Issue{
				Index:   &i,
				Code:    IssueDanglingRelation,
				Message: fmt.Sprintf("relationship %s -> %s references a missing table and will be skipped", r.From, r.To),
			})
			continue
		}
		if r.From == r.To {
			issues = append(issues, Issue{
				Table:   r.From,
				Index:   &i,
				Code:    IssueSelfRelation,
				Message: "relationship references its own table",
			})
		}
	}
	return issues
}
