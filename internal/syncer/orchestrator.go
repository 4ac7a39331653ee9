// Package syncer saves a schema design to a backend and materializes it as tables.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"visubase/internal/baas"
	"visubase/internal/pg"
	"visubase/internal/schema"
)

type State string

const (
	StateIdle            State = "idle"
	StateSyncing         State = "syncing"
	StateBootstrapNeeded State = "bootstrap_needed"
	StateBootstrapping   State = "bootstrapping"
	StateRetrySyncing    State = "retry_syncing"
	StateMaterializing   State = "materializing"
	StateSuccess         State = "success"
	StatePartial         State = "partial"
	StateFailed          State = "failed"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomePartial: the design was saved but the tables could not be created.
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
	// OutcomeInvalid: rejected before any backend contact.
	OutcomeInvalid Outcome = "invalid"
)

// Result is what every orchestrator operation returns; failures are data, not errors.
type Result struct {
	Success      bool    `json:"success"`
	Outcome      Outcome `json:"outcome"`
	State        State   `json:"state"`
	Message      string  `json:"message"`
	Bootstrapped bool    `json:"bootstrapped,omitempty"`
	SQL          string  `json:"sql,omitempty"`
}

const DefaultSchemaName = "default"

// Orchestrator runs sync workflows. It holds no lock: callers must not start a
// second workflow before the first returns.
type Orchestrator struct {
	dialer baas.Dialer
	now    func() time.Time

	// OnTransition, when set, observes every state change.
	OnTransition func(State)
	// OnFailure, when set, receives the error behind a failed or partial result.
	OnFailure func(error)
}

func New(d baas.Dialer) *Orchestrator {
	return &Orchestrator{dialer: d, now: time.Now}
}

type run struct {
	o     *Orchestrator
	state State
}

func (o *Orchestrator) start() *run {
	r := &run{o: o, state: StateIdle}
	r.to(StateIdle)
	return r
}

func (r *run) to(s State) {
	r.state = s
	if r.o.OnTransition != nil {
		r.o.OnTransition(s)
	}
}

func (r *run) result(out Outcome, msg string, err error) Result {
	switch out {
	case OutcomeSuccess:
		r.to(StateSuccess)
	case OutcomePartial:
		r.to(StatePartial)
	case OutcomeInvalid:
		// never left idle
	default:
		r.to(StateFailed)
	}
	if err != nil && r.o.OnFailure != nil {
		r.o.OnFailure(err)
	}
	return Result{Success: out == OutcomeSuccess, Outcome: out, State: r.state, Message: msg}
}

func validate(creds baas.Credentials, doc schema.Document, noun string) string {
	if !creds.Complete() {
		return "backend credentials are not configured; connect first"
	}
	if len(doc.Tables) == 0 {
		return fmt.Sprintf("no tables to %s; add at least one table first", noun)
	}
	return ""
}

// Sync saves doc under name and then creates its tables. A missing document
// table is created once and the save retried once.
func (o *Orchestrator) Sync(ctx context.Context, creds baas.Credentials, name string, doc schema.Document) Result {
	r := o.start()
	if msg := validate(creds, doc, "sync"); msg != "" {
		return r.result(OutcomeInvalid, msg, nil)
	}
	if name == "" {
		name = DefaultSchemaName
	}

	r.to(StateSyncing)
	be, err := o.dialer.Dial(ctx, creds)
	if err != nil {
		return r.result(OutcomeFailed, fmt.Sprintf("connect: %v", err), err)
	}
	defer be.Close()

	row := baas.SchemaRow{Name: name, Data: doc, UpdatedAt: o.now().UTC()}
	bootstrapped := false
	err = be.UpsertSchema(ctx, row)
	if errors.Is(err, baas.ErrStorageMissing) {
		r.to(StateBootstrapNeeded)
		log.Printf("syncer: schemas table missing, bootstrapping")
		r.to(StateBootstrapping)
		if berr := be.ExecSQL(ctx, baas.SetupSQL); berr != nil {
			res := r.result(OutcomeFailed,
				fmt.Sprintf("could not create the schemas table automatically (%v); run this SQL manually:\n\n%s", berr, baas.SetupSQL), berr)
			return res
		}
		bootstrapped = true
		r.to(StateRetrySyncing)
		err = be.UpsertSchema(ctx, row)
	}
	if err != nil {
		res := r.result(OutcomeFailed, err.Error(), err)
		res.Bootstrapped = bootstrapped
		return res
	}
	log.Printf("syncer: saved schema %q (%d tables, %d relationships)", name, len(doc.Tables), len(doc.Relationships))

	res := o.materialize(ctx, r, be, doc, true)
	res.Bootstrapped = bootstrapped
	return res
}

// CreateTablesOnly synthesizes and executes the SQL; the design is not saved.
func (o *Orchestrator) CreateTablesOnly(ctx context.Context, creds baas.Credentials, doc schema.Document) Result {
	r := o.start()
	if msg := validate(creds, doc, "create"); msg != "" {
		return r.result(OutcomeInvalid, msg, nil)
	}
	be, err := o.dialer.Dial(ctx, creds)
	if err != nil {
		return r.result(OutcomeFailed, fmt.Sprintf("connect: %v", err), err)
	}
	defer be.Close()
	return o.materialize(ctx, r, be, doc, false)
}

func (o *Orchestrator) materialize(ctx context.Context, r *run, be baas.Backend, doc schema.Document, saved bool) Result {
	r.to(StateMaterializing)
	sql := pg.GenerateSQL(doc)
	if err := be.ExecSQL(ctx, sql); err != nil {
		var res Result
		if saved {
			res = r.result(OutcomePartial, fmt.Sprintf("schema saved but tables failed: %v", err), err)
		} else {
			res = r.result(OutcomeFailed, fmt.Sprintf("failed to create tables: %v", err), err)
		}
		res.SQL = sql
		return res
	}
	log.Printf("syncer: created %d tables", len(doc.Tables))
	msg := "tables created"
	if saved {
		msg = "schema saved and tables created"
	}
	return r.result(OutcomeSuccess, msg, nil)
}

// Pull loads the design stored under name.
func (o *Orchestrator) Pull(ctx context.Context, creds baas.Credentials, name string) (schema.Document, Result) {
	r := o.start()
	if !creds.Complete() {
		return schema.Document{}, r.result(OutcomeInvalid, "backend credentials are not configured; connect first", nil)
	}
	if name == "" {
		name = DefaultSchemaName
	}
	be, err := o.dialer.Dial(ctx, creds)
	if err != nil {
		return schema.Document{}, r.result(OutcomeFailed, fmt.Sprintf("connect: %v", err), err)
	}
	defer be.Close()

	row, err := be.SelectSchema(ctx, name)
	if err != nil {
		return schema.Document{}, r.result(OutcomeFailed, err.Error(), err)
	}
	return row.Data, r.result(OutcomeSuccess, fmt.Sprintf("loaded schema %q", name), nil)
}

// Import lists the backend's existing tables when the backend supports it.
func (o *Orchestrator) Import(ctx context.Context, creds baas.Credentials) ([]schema.Table, Result) {
	r := o.start()
	if !creds.Complete() {
		return nil, r.result(OutcomeInvalid, "backend credentials are not configured; connect first", nil)
	}
	be, err := o.dialer.Dial(ctx, creds)
	if err != nil {
		return nil, r.result(OutcomeFailed, fmt.Sprintf("connect: %v", err), err)
	}
	defer be.Close()

	imp, ok := be.(baas.Importer)
	if !ok {
		return nil, r.result(OutcomeFailed, "this backend cannot list its tables", nil)
	}
	tables, err := imp.ImportTables(ctx)
	if err != nil {
		return nil, r.result(OutcomeFailed, err.Error(), err)
	}
	return tables, r.result(OutcomeSuccess, fmt.Sprintf("imported %d table(s)", len(tables)), nil)
}
