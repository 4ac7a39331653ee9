package reference

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed types.yaml
var builtinTypes []byte

// Builtin returns the catalog compiled into the binary.
func Builtin() TypeCatalog {
	c, err := parse(builtinTypes)
	if err != nil {
		panic(fmt.Sprintf("reference: builtin types.yaml: %v", err))
	}
	return c
}

func parse(data []byte) (TypeCatalog, error) {
	var c TypeCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return TypeCatalog{}, err
	}
	for i, it := range c.Items {
		if strings.TrimSpace(it.Code) == "" {
			return TypeCatalog{}, fmt.Errorf("item %d has no code", i)
		}
	}
	return c, nil
}

// LoadCatalog reads the builtin catalog and appends the items of every
// .yaml/.yml file in dir. An empty dir means builtin only.
func LoadCatalog(dir string) (TypeCatalog, error) {
	c := Builtin()
	if dir == "" {
		return c, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return TypeCatalog{}, err
	}
	seen := map[string]bool{}
	for _, it := range c.Items {
		seen[strings.ToLower(it.Code)] = true
	}
	for _, file := range files {
		if file.IsDir() || !(strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return TypeCatalog{}, err
		}
		extra, err := parse(data)
		if err != nil {
			return TypeCatalog{}, fmt.Errorf("%s: %w", file.Name(), err)
		}
		for _, it := range extra.Items {
			if seen[strings.ToLower(it.Code)] {
				continue
			}
			seen[strings.ToLower(it.Code)] = true
			c.Items = append(c.Items, it)
		}
	}
	return c, nil
}

// Codes returns the type codes in catalog order.
func (c TypeCatalog) Codes() []string {
	out := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, it.Code)
	}
	return out
}

// Known reports whether typ is a catalog code or alias. Matching ignores case
// and a trailing length or precision, so varchar(255) is known.
func (c TypeCatalog) Known(typ string) bool {
	_, ok := c.Lookup(typ)
	return ok
}

// Lookup returns the catalog item for typ, matched the way Known matches.
// Array types resolve to their element type.
func (c TypeCatalog) Lookup(typ string) (TypeItem, bool) {
	t := strings.ToLower(strings.TrimSpace(typ))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, "[]")
	for _, it := range c.Items {
		if strings.EqualFold(it.Code, t) {
			return it, true
		}
		for _, a := range it.Aliases {
			if strings.EqualFold(a, t) {
				return it, true
			}
		}
	}
	return TypeItem{}, false
}
