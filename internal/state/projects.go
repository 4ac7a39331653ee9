package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"visubase/internal/schema"
)

var ErrProjectNotFound = errors.New("project not found")

// BackupProject receives the active schema before another project is loaded.
const BackupProject = "_autosave_backup"

type Project struct {
	Schema  schema.Document `json:"schema"`
	SavedAt time.Time       `json:"savedAt"`
}

type ProjectInfo struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
	Tables  int       `json:"tables"`
}

// Projects is the named-project map, stored as one {name: project} document.
type Projects struct {
	kv     KV
	key    string
	active *Persister
	store  *schema.Store
	now    func() time.Time
}

// CorruptSuffix is appended to the projects key to keep an unreadable map.
const CorruptSuffix = ".corrupt"

func NewProjects(kv KV, key string, active *Persister, store *schema.Store) *Projects {
	return &Projects{kv: kv, key: key, active: active, store: store, now: time.Now}
}

func (p *Projects) read(ctx context.Context) (map[string]Project, error) {
	b, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, ErrMissing) {
		return map[string]Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read projects: %w", err)
	}
	m := map[string]Project{}
	if err := json.Unmarshal(b, &m); err != nil {
		// the unreadable value is set aside under <key>.corrupt before the
		// next write replaces it with an empty map
		if err := p.kv.Set(ctx, p.key+CorruptSuffix, b); err != nil {
			return nil, fmt.Errorf("keep unreadable projects: %w", err)
		}
		log.Printf("state: projects under %s unreadable (%v), copied to %s%s", p.key, err, p.key, CorruptSuffix)
		return map[string]Project{}, nil
	}
	return m, nil
}

func (p *Projects) write(ctx context.Context, m map[string]Project) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode projects: %w", err)
	}
	if err := p.kv.Set(ctx, p.key, b); err != nil {
		return fmt.Errorf("write projects: %w", err)
	}
	return nil
}

func (p *Projects) put(ctx context.Context, name string, d schema.Document) error {
	m, err := p.read(ctx)
	if err != nil {
		return err
	}
	m[name] = Project{Schema: d, SavedAt: p.now().UTC()}
	return p.write(ctx, m)
}

// Save stores the current schema under name, replacing any project with that name.
func (p *Projects) Save(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: project name is empty", schema.ErrInvalid)
	}
	return p.put(ctx, name, p.store.Document())
}

// List returns the visible projects, newest first. Names starting with "_" are internal.
func (p *Projects) List(ctx context.Context) ([]ProjectInfo, error) {
	m, err := p.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectInfo, 0, len(m))
	for name, pr := range m {
		if strings.HasPrefix(name, "_") {
			continue
		}
		out = append(out, ProjectInfo{Name: name, SavedAt: pr.SavedAt, Tables: len(pr.Schema.Tables)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Load backs up the active schema, makes the named project the active
// persisted state and replaces the store contents with it.
func (p *Projects) Load(ctx context.Context, name string) (schema.Document, error) {
	m, err := p.read(ctx)
	if err != nil {
		return schema.Document{}, err
	}
	pr, ok := m[name]
	if !ok {
		return schema.Document{}, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err := pr.Schema.CheckTableIDs(); err != nil {
		return schema.Document{}, fmt.Errorf("project %q: %w", name, err)
	}

	m[BackupProject] = Project{Schema: p.store.Document(), SavedAt: p.now().UTC()}
	if err := p.write(ctx, m); err != nil {
		return schema.Document{}, err
	}
	if p.active != nil {
		if err := p.active.Write(ctx, pr.Schema); err != nil {
			return schema.Document{}, err
		}
	}
	if err := p.store.Replace(pr.Schema); err != nil {
		return schema.Document{}, err
	}
	log.Printf("state: loaded project %q (%d tables)", name, len(pr.Schema.Tables))
	return p.store.Document(), nil
}

func (p *Projects) Delete(ctx context.Context, name string) error {
	m, err := p.read(ctx)
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	delete(m, name)
	return p.write(ctx, m)
}
