// Package supabase implements the backend capabilities over a Supabase
// project's PostgREST endpoint. SQL runs through an exec_sql RPC function that
// must be installed once in the project (see SetupFunctionSQL).
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/supabase-community/postgrest-go"

	"visubase/internal/baas"
	"visubase/internal/schema"
)

// SetupFunctionSQL installs the RPC entry point used by ExecSQL.
const SetupFunctionSQL = `CREATE OR REPLACE FUNCTION exec_sql(sql_query TEXT)
RETURNS JSONB
LANGUAGE plpgsql
SECURITY DEFINER
AS $$
BEGIN
  EXECUTE sql_query;
  RETURN jsonb_build_object('success', true);
EXCEPTION
  WHEN OTHERS THEN
    RETURN jsonb_build_object('success', false, 'error', SQLERRM);
END;
$$;`

// DefaultTimeout bounds every PostgREST call.
const DefaultTimeout = 30 * time.Second

// PostgREST reports an unknown relation as PGRST205; plain Postgres errors pass through as 42P01.
var missingTableCodes = map[string]bool{"PGRST205": true, "42P01": true}

// Older PostgREST versions and proxies only name the relation in the message.
var schemasRelationRe = regexp.MustCompile("(?i)public\\.schemas\\b|[\"'`]schemas[\"'`]")

// postgrest-go formats response errors as "(<code>) <message>".
var executeErrRe = regexp.MustCompile(`(?s)^\(([^)]*)\) (.*)$`)

var (
	_ baas.Backend  = (*Client)(nil)
	_ baas.RowStore = (*Client)(nil)
)

// APIError is an error body returned by PostgREST.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return "supabase: " + e.Message
	}
	return fmt.Sprintf("supabase: %s (%s)", e.Message, e.Code)
}

// storageMissing reports whether the error says the schemas table is absent.
func (e *APIError) storageMissing() bool {
	return missingTableCodes[e.Code] || schemasRelationRe.MatchString(e.Message)
}

// classify turns a postgrest-go error into an *APIError, marking a missing
// schemas table with baas.ErrStorageMissing. Transport errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	m := executeErrRe.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	apiErr := &APIError{Code: m[1], Message: m[2]}
	if apiErr.storageMissing() {
		return fmt.Errorf("%w: %w", baas.ErrStorageMissing, apiErr)
	}
	return apiErr
}

type Client struct {
	base    string
	key     string
	rt      http.RoundTripper
	timeout time.Duration
}

// NewClient builds a client for the project at creds.URL. rt may be nil.
func NewClient(creds baas.Credentials, rt http.RoundTripper) *Client {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Client{
		base:    strings.TrimRight(strings.TrimSpace(creds.URL), "/"),
		key:     strings.TrimSpace(creds.Key),
		rt:      rt,
		timeout: DefaultTimeout,
	}
}

// Dialer returns a baas.Dialer building clients that share rt.
func Dialer(rt http.RoundTripper) baas.Dialer {
	return baas.DialerFunc(func(_ context.Context, creds baas.Credentials) (baas.Backend, error) {
		if _, err := url.ParseRequestURI(creds.URL); err != nil {
			return nil, fmt.Errorf("invalid project url: %w", err)
		}
		return NewClient(creds, rt), nil
	})
}

func (c *Client) Close() {}

// ctxTransport carries the caller's context into requests postgrest-go
// builds without one.
type ctxTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}

// rest returns a fresh postgrest client bound to ctx. postgrest-go keeps
// request errors on the client, so one is never shared between calls.
func (c *Client) rest(ctx context.Context) (*postgrest.Client, error) {
	rc := postgrest.NewClient(c.base+"/rest/v1", "public", map[string]string{
		"apikey":        c.key,
		"Authorization": "Bearer " + c.key,
	})
	if rc.ClientError != nil {
		return nil, rc.ClientError
	}
	rc.Transport.Parent = ctxTransport{ctx: ctx, next: c.rt}
	return rc, nil
}

// call runs fn with a postgrest client bound to a context limited by the client timeout.
func (c *Client) call(ctx context.Context, fn func(rc *postgrest.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rc, err := c.rest(ctx)
	if err != nil {
		return err
	}
	return classify(fn(rc))
}

func (c *Client) UpsertSchema(ctx context.Context, row baas.SchemaRow) error {
	body, err := json.Marshal([]baas.SchemaRow{row})
	if err != nil {
		return err
	}
	return c.call(ctx, func(rc *postgrest.Client) error {
		_, _, err := rc.From(baas.StorageTable).
			Upsert(json.RawMessage(body), "name", "minimal", "").
			Execute()
		return err
	})
}

func (c *Client) SelectSchema(ctx context.Context, name string) (baas.SchemaRow, error) {
	var rows []struct {
		Name      string          `json:"name"`
		Data      json.RawMessage `json:"data"`
		UpdatedAt time.Time       `json:"updated_at"`
	}
	err := c.call(ctx, func(rc *postgrest.Client) error {
		_, err := rc.From(baas.StorageTable).
			Select("name,data,updated_at", "", false).
			Eq("name", name).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return baas.SchemaRow{Name: name}, err
	}
	if len(rows) == 0 {
		return baas.SchemaRow{Name: name}, fmt.Errorf("schema %q: %w", name, baas.ErrNotFound)
	}
	doc, err := schema.ParseDocument(rows[0].Data)
	if err != nil {
		return baas.SchemaRow{Name: name}, err
	}
	return baas.SchemaRow{Name: rows[0].Name, Data: doc, UpdatedAt: rows[0].UpdatedAt}, nil
}

// execResult covers both the function's own result and a PostgREST error
// body, since Rpc returns the response body whatever the status.
type execResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecSQL calls the exec_sql RPC. The function reports SQL errors in its
// result instead of failing the request.
func (c *Client) ExecSQL(ctx context.Context, sql string) error {
	var res execResult
	err := c.call(ctx, func(rc *postgrest.Client) error {
		body := rc.Rpc("exec_sql", "", map[string]string{"sql_query": sql})
		if rc.ClientError != nil {
			return rc.ClientError
		}
		if err := json.Unmarshal([]byte(body), &res); err != nil {
			return fmt.Errorf("decode exec_sql response: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if res.Code != "" {
		if res.Code == "PGRST202" {
			log.Printf("supabase: exec_sql function is not installed in %s", c.base)
		}
		return &APIError{Code: res.Code, Message: res.Message}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "exec_sql reported failure"
		}
		return errors.New(msg)
	}
	return nil
}

func (c *Client) SelectRows(ctx context.Context, table string, limit, offset int) ([]baas.Row, error) {
	rows := []baas.Row{}
	err := c.call(ctx, func(rc *postgrest.Client) error {
		_, err := rc.From(table).
			Select("*", "", false).
			Range(offset, offset+limit-1, "").
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) InsertRow(ctx context.Context, table string, row baas.Row) (baas.Row, error) {
	body, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var out []baas.Row
	err = c.call(ctx, func(rc *postgrest.Client) error {
		_, err := rc.From(table).
			Insert(json.RawMessage(body), false, "", "representation", "").
			ExecuteTo(&out)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return baas.Row{}, nil
	}
	return out[0], nil
}

func (c *Client) UpdateRow(ctx context.Context, table, id string, row baas.Row) (baas.Row, error) {
	body, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var out []baas.Row
	err = c.call(ctx, func(rc *postgrest.Client) error {
		_, err := rc.From(table).
			Update(json.RawMessage(body), "representation", "").
			Eq("id", id).
			ExecuteTo(&out)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s id=%s: %w", table, id, baas.ErrRowNotFound)
	}
	return out[0], nil
}

func (c *Client) DeleteRow(ctx context.Context, table, id string) error {
	var out []baas.Row
	err := c.call(ctx, func(rc *postgrest.Client) error {
		_, err := rc.From(table).
			Delete("representation", "").
			Eq("id", id).
			ExecuteTo(&out)
		return err
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return fmt.Errorf("%s id=%s: %w", table, id, baas.ErrRowNotFound)
	}
	return nil
}
