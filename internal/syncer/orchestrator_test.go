package syncer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visubase/internal/baas"
	"visubase/internal/schema"
)

type fakeBackend struct {
	upsertErrs []error // consumed one per UpsertSchema call
	execErr    func(sql string) error

	upserts []baas.SchemaRow
	execs   []string
	rows    map[string]baas.SchemaRow
	tables  []schema.Table
	closed  bool
}

func (f *fakeBackend) UpsertSchema(_ context.Context, row baas.SchemaRow) error {
	f.upserts = append(f.upserts, row)
	if len(f.upsertErrs) > 0 {
		err := f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) SelectSchema(_ context.Context, name string) (baas.SchemaRow, error) {
	row, ok := f.rows[name]
	if !ok {
		return baas.SchemaRow{}, baas.ErrNotFound
	}
	return row, nil
}

func (f *fakeBackend) ExecSQL(_ context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	if f.execErr != nil {
		return f.execErr(sql)
	}
	return nil
}

func (f *fakeBackend) Close() { f.closed = true }

type importingBackend struct{ *fakeBackend }

func (b importingBackend) ImportTables(context.Context) ([]schema.Table, error) {
	return b.tables, nil
}

type countingDialer struct {
	be    baas.Backend
	err   error
	dials int
}

func (d *countingDialer) Dial(context.Context, baas.Credentials) (baas.Backend, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.be, nil
}

var creds = baas.Credentials{URL: "https://x.supabase.co", Key: "anon"}

func missing() error {
	return errors.Join(baas.ErrStorageMissing, errors.New(`relation "public.schemas" does not exist`))
}

func recordStates(o *Orchestrator) *[]State {
	var got []State
	o.OnTransition = func(s State) { got = append(got, s) }
	return &got
}

func TestSyncValidationNeverDials(t *testing.T) {
	d := &countingDialer{be: &fakeBackend{}}
	o := New(d)

	res := o.Sync(context.Background(), baas.Credentials{}, "default", schema.DefaultDocument())
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Equal(t, StateIdle, res.State)

	res = o.Sync(context.Background(), creds, "default", schema.Document{})
	assert.Equal(t, OutcomeInvalid, res.Outcome)
	assert.Contains(t, res.Message, "no tables")

	res = o.CreateTablesOnly(context.Background(), baas.Credentials{URL: "u"}, schema.DefaultDocument())
	assert.Equal(t, OutcomeInvalid, res.Outcome)

	assert.Zero(t, d.dials)
}

func TestSyncHappyPath(t *testing.T) {
	be := &fakeBackend{}
	o := New(&countingDialer{be: be})
	states := recordStates(o)
	doc := schema.DefaultDocument()

	res := o.Sync(context.Background(), creds, "", doc)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.False(t, res.Bootstrapped)
	require.Len(t, be.upserts, 1)
	assert.Equal(t, DefaultSchemaName, be.upserts[0].Name)
	require.Len(t, be.execs, 1)
	assert.Contains(t, be.execs[0], "CREATE TABLE box_1")
	assert.True(t, be.closed)
	assert.Equal(t, []State{StateIdle, StateSyncing, StateMaterializing, StateSuccess}, *states)
}

func TestSyncBootstrapsOnceThenRetries(t *testing.T) {
	be := &fakeBackend{upsertErrs: []error{missing(), nil}}
	o := New(&countingDialer{be: be})
	states := recordStates(o)

	res := o.Sync(context.Background(), creds, "default", schema.DefaultDocument())
	require.True(t, res.Success, res.Message)
	assert.True(t, res.Bootstrapped)
	assert.Len(t, be.upserts, 2)
	require.Len(t, be.execs, 2)
	assert.Equal(t, baas.SetupSQL, be.execs[0])
	assert.Contains(t, be.execs[1], "-- Generated SQL Schema")
	assert.Equal(t, []State{
		StateIdle, StateSyncing, StateBootstrapNeeded, StateBootstrapping,
		StateRetrySyncing, StateMaterializing, StateSuccess,
	}, *states)
}

func TestSyncRetriesOnlyOnce(t *testing.T) {
	be := &fakeBackend{upsertErrs: []error{missing(), missing(), missing()}}
	o := New(&countingDialer{be: be})

	res := o.Sync(context.Background(), creds, "default", schema.DefaultDocument())
	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Bootstrapped)
	assert.Len(t, be.upserts, 2)
	assert.Len(t, be.execs, 1, "no table creation after a failed save")
}

func TestSyncBootstrapFailureShowsManualSQL(t *testing.T) {
	be := &fakeBackend{
		upsertErrs: []error{missing()},
		execErr:    func(string) error { return errors.New("function exec_sql does not exist") },
	}
	var reported error
	o := New(&countingDialer{be: be})
	o.OnFailure = func(err error) { reported = err }

	res := o.Sync(context.Background(), creds, "default", schema.DefaultDocument())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Message, "CREATE TABLE IF NOT EXISTS public.schemas")
	assert.Len(t, be.upserts, 1)
	assert.Error(t, reported)
}

func TestSyncOtherUpsertErrorIsTerminal(t *testing.T) {
	be := &fakeBackend{upsertErrs: []error{errors.New("permission denied for table schemas")}}
	o := New(&countingDialer{be: be})

	res := o.Sync(context.Background(), creds, "default", schema.DefaultDocument())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "permission denied for table schemas", res.Message)
	assert.Len(t, be.upserts, 1)
	assert.Empty(t, be.execs)
}

func TestSyncTableFailureIsPartial(t *testing.T) {
	be := &fakeBackend{execErr: func(string) error { return errors.New(`type "strng" does not exist`) }}
	o := New(&countingDialer{be: be})

	res := o.Sync(context.Background(), creds, "default", schema.DefaultDocument())
	assert.False(t, res.Success)
	assert.Equal(t, OutcomePartial, res.Outcome)
	assert.Equal(t, StatePartial, res.State)
	assert.Contains(t, res.Message, "schema saved")
	assert.Contains(t, res.Message, "strng")
	assert.NotEmpty(t, res.SQL)
}

func TestSyncDialFailure(t *testing.T) {
	d := &countingDialer{err: errors.New("connection refused")}
	res := New(d).Sync(context.Background(), creds, "default", schema.DefaultDocument())
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Message, "connection refused")
	assert.Equal(t, 1, d.dials)
}

func TestCreateTablesOnlySkipsUpsert(t *testing.T) {
	be := &fakeBackend{}
	o := New(&countingDialer{be: be})

	res := o.CreateTablesOnly(context.Background(), creds, schema.DefaultDocument())
	require.True(t, res.Success)
	assert.Empty(t, be.upserts)
	assert.Len(t, be.execs, 1)

	be.execErr = func(string) error { return errors.New("boom") }
	res = o.CreateTablesOnly(context.Background(), creds, schema.DefaultDocument())
	assert.Equal(t, OutcomeFailed, res.Outcome, "nothing was saved, so this is not partial")
}

func TestPull(t *testing.T) {
	doc := schema.DefaultDocument()
	be := &fakeBackend{rows: map[string]baas.SchemaRow{"default": {Name: "default", Data: doc}}}
	o := New(&countingDialer{be: be})

	got, res := o.Pull(context.Background(), creds, "")
	require.True(t, res.Success)
	assert.Equal(t, doc, got)

	_, res = o.Pull(context.Background(), creds, "other")
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestImport(t *testing.T) {
	be := &fakeBackend{tables: []schema.Table{{ID: "t", Name: "orders"}}}

	_, res := New(&countingDialer{be: be}).Import(context.Background(), creds)
	assert.Equal(t, OutcomeFailed, res.Outcome, "plain backend cannot import")

	tables, res := New(&countingDialer{be: importingBackend{be}}).Import(context.Background(), creds)
	require.True(t, res.Success)
	assert.Len(t, tables, 1)
}
