package reference

// TypeCatalog lists the column types offered by the editor.
type TypeCatalog struct {
	Name  string     `yaml:"name" json:"name"`
	Items []TypeItem `yaml:"items" json:"items"`
}

type TypeItem struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
	// Aliases are spellings Postgres reports for the same type, e.g. int4 for integer.
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}
