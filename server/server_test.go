package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/invql/config"
	"github.com/syssam/invql/graphql/schema"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const blogYAML = `
collections:
  - name: person
    primary_key: id
    fields:
      - {name: id, type: "int!"}
      - {name: name, type: string}
    privacy: [deny_if_no_viewer, "owner:id", "has_role:admin", deny]
    rows:
      - {id: 1, name: Alice}
      - {id: 2, name: Bob}
  - name: post
    primary_key: id
    fields:
      - {name: id, type: "int!"}
      - {name: title, type: string}
    rows:
      - {id: 10, title: Hello}
`

const tagYAML = `
collections:
  - name: tag
    primary_key: id
    fields:
      - {name: id, type: "int!"}
      - {name: label, type: string}
    rows:
      - {id: 1, label: go}
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func build(t *testing.T, doc string) (*schema.Schema, func() error) {
	t.Helper()
	c, err := config.Parse([]byte(doc))
	require.NoError(t, err)
	inv, err := c.Open(discard)
	require.NoError(t, err)
	s, err := schema.CreateSchema(inv, c.SchemaOptions(discard)...)
	require.NoError(t, err)
	return s, inv.Close
}

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, closer := build(t, blogYAML)
	return New(s, append([]Option{WithLogger(discard), WithCloser(closer)}, opts...)...)
}

type response struct {
	Data   map[string]any   `json:"data"`
	Errors []map[string]any `json:"errors"`
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var res response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}
	return rec, res
}

func postQuery(query string) *http.Request {
	body, _ := json.Marshal(schema.Request{Query: query})
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// =============================================================================
// GraphQL endpoint
// =============================================================================

func TestGraphQLPost(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()

	rec, res := serve(t, h, postQuery(`{ postById(id: 10) { title } }`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"title": "Hello"}, res.Data["postById"])
	assert.Len(t, rec.Header().Get(HeaderRequestID), 26, "ulid")
}

func TestGraphQLGet(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()

	q := url.Values{}
	q.Set("query", `query Post($id: Int!) { postById(id: $id) { title } }`)
	q.Set("variables", `{"id": 10}`)
	q.Set("operationName", "Post")
	rec, res := serve(t, h, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"title": "Hello"}, res.Data["postById"])
}

func TestGraphQLBadRequest(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()

	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"missing query", func() *http.Request { return postQuery("  ") }},
		{"invalid body", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{"))
		}},
		{"get without query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/graphql", nil)
		}},
		{"invalid variables", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/graphql?query=%7Bx%7D&variables=nope", nil)
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, res := serve(t, h, tt.req())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.Len(t, res.Errors, 1)
			assert.NotEmpty(t, res.Errors[0]["message"])
		})
	}
}

func TestGraphQLErrorsAreOK(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()
	rec, res := serve(t, h, postQuery(`{ nope }`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, res.Errors)
}

// =============================================================================
// Middleware
// =============================================================================

func TestRequestIDKept(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()
	req := postQuery(`{ postById(id: 10) { title } }`)
	req.Header.Set(HeaderRequestID, "req-1")
	rec, _ := serve(t, h, req)
	assert.Equal(t, "req-1", rec.Header().Get(HeaderRequestID))
}

func TestViewerHeaders(t *testing.T) {
	t.Parallel()
	h := newServer(t, WithViewerHeaders()).Handler()
	const query = `{ a: personById(id: 1) { name } b: personById(id: 2) { name } }`

	tests := []struct {
		name    string
		headers map[string]string
		a, b    any
	}{
		{"anonymous", nil, nil, nil},
		{"owner", map[string]string{HeaderViewerID: "1"}, map[string]any{"name": "Alice"}, nil},
		{"admin", map[string]string{HeaderViewerID: "9", HeaderViewerRoles: "user, admin"},
			map[string]any{"name": "Alice"}, map[string]any{"name": "Bob"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := postQuery(query)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec, res := serve(t, h, req)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Empty(t, res.Errors)
			assert.Equal(t, tt.a, res.Data["a"])
			assert.Equal(t, tt.b, res.Data["b"])
		})
	}
}

func TestViewerHeadersIgnoredByDefault(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()
	req := postQuery(`{ a: personById(id: 1) { name } b: personById(id: 2) { name } }`)
	req.Header.Set(HeaderViewerID, "9")
	req.Header.Set(HeaderViewerRoles, "admin")

	rec, res := serve(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, res.Errors)
	assert.Nil(t, res.Data["a"], "claimed viewer is not trusted")
	assert.Nil(t, res.Data["b"])
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a,, b ,"))
}

// =============================================================================
// Auxiliary endpoints
// =============================================================================

func TestSchemaEndpoint(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()
	rec, _ := serve(t, h, httptest.NewRequest(http.MethodGet, "/schema.graphql", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "type Person")
	assert.Contains(t, body, "postById")
}

func TestPlayground(t *testing.T) {
	t.Parallel()
	h := newServer(t).Handler()
	rec, _ := serve(t, h, httptest.NewRequest(http.MethodGet, "/playground", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invql")
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec, _ := serve(t, newServer(t).Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newServer(t, WithHealthCheck(func(context.Context) error {
		return errors.New("database is down")
	}))
	rec, _ = serve(t, failing.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is down")
}

// =============================================================================
// Reloading
// =============================================================================

func TestSwap(t *testing.T) {
	t.Parallel()
	var closed atomic.Int32
	first, _ := build(t, blogYAML)
	srv := New(first, WithLogger(discard), WithGracePeriod(0), WithCloser(func() error {
		closed.Add(1)
		return nil
	}))
	h := srv.Handler()

	next, _ := build(t, tagYAML)
	srv.Swap(next, nil)
	assert.Same(t, next, srv.Schema())
	require.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 10*time.Millisecond)

	_, res := serve(t, h, postQuery(`{ tagById(id: 1) { label } }`))
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"label": "go"}, res.Data["tagById"])

	_, res = serve(t, h, postQuery(`{ postById(id: 10) { title } }`))
	assert.NotEmpty(t, res.Errors, "previous schema is gone")
	assert.NoError(t, srv.Close())
}

func TestWatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "invql.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogYAML), 0o600))

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, discard, func() error {
			if calls.Add(1) == 1 {
				return errors.New("broken file")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(tagYAML), 0o600)
		return calls.Load() >= 2
	}, 5*time.Second, 250*time.Millisecond, "watch survives a failed reload")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRun(t *testing.T) {
	t.Parallel()
	var closed atomic.Bool
	s, _ := build(t, blogYAML)
	srv := New(s, WithLogger(discard), WithCloser(func() error {
		closed.Store(true)
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, closed.Load())
}
