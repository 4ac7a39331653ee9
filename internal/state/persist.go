package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"visubase/internal/schema"
)

const (
	DefaultStateKey    = "visubase-storage"
	DefaultProjectsKey = "visubase-projects"
)

// envelope is the stored shape: {"state": {...}, "version": 0}.
type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

type storedState struct {
	schema.Document
	Selected    *string `json:"selected"`
	ConnectMode *string `json:"connectMode"`
}

const writeTimeout = 5 * time.Second

// Persister writes the store's graph under a single key after every mutation.
// Transient UI fields are written as null.
type Persister struct {
	KV  KV
	Key string
}

func (p *Persister) Persist(snap schema.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return p.Write(ctx, snap.Document)
}

func (p *Persister) Write(ctx context.Context, d schema.Document) error {
	b, err := encodeState(d)
	if err != nil {
		return err
	}
	if err := p.KV.Set(ctx, p.Key, b); err != nil {
		return fmt.Errorf("write %s: %w", p.Key, err)
	}
	return nil
}

func encodeState(d schema.Document) ([]byte, error) {
	if d.Tables == nil {
		d.Tables = []schema.Table{}
	}
	if d.Relationships == nil {
		d.Relationships = []schema.Relationship{}
	}
	inner, err := json.Marshal(storedState{Document: d})
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return json.Marshal(envelope{State: inner})
}

// Load reads the active schema. A missing, unreadable or malformed value
// yields the default document and restored=false; it never fails.
func Load(ctx context.Context, kv KV, key string) (doc schema.Document, restored bool) {
	b, err := kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMissing) {
			log.Printf("state: read %s: %v; starting from defaults", key, err)
		}
		return schema.DefaultDocument(), false
	}
	doc, err = decodeState(b)
	if err != nil {
		log.Printf("state: %s: %v; starting from defaults", key, err)
		return schema.DefaultDocument(), false
	}
	return doc, true
}

func decodeState(b []byte) (schema.Document, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return schema.Document{}, fmt.Errorf("decode envelope: %w", err)
	}
	var peek struct {
		Tables json.RawMessage `json:"tables"`
	}
	if len(env.State) == 0 || string(env.State) == "null" {
		return schema.Document{}, errors.New("no state in envelope")
	}
	if err := json.Unmarshal(env.State, &peek); err != nil {
		return schema.Document{}, fmt.Errorf("decode state: %w", err)
	}
	if len(peek.Tables) == 0 || string(peek.Tables) == "null" {
		return schema.Document{}, errors.New("state has no tables")
	}
	return schema.ParseDocument(env.State)
}
