package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillcms/quill/app"
	"github.com/quillcms/quill/core/engine"
	"github.com/quillcms/quill/core/query"
	"github.com/quillcms/quill/core/schema"
	"github.com/quillcms/quill/domain/webhook"
	"github.com/quillcms/quill/ports"
)

// stubStore records calls for handler-level assertions.
type stubStore struct {
	calls      []string
	findResult []map[string]any
}

func (s *stubStore) FindMany(ctx context.Context, collection string, q query.Query) ([]map[string]any, error) {
	s.calls = append(s.calls, "findMany")
	return s.findResult, nil
}

func (s *stubStore) Create(ctx context.Context, collection string, data map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, "create")
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = int64(1)
	return out, nil
}

func (s *stubStore) CreateMany(ctx context.Context, collection string, rows []map[string]any, skipDuplicates bool) ([]map[string]any, error) {
	s.calls = append(s.calls, "createMany")
	return rows, nil
}

func (s *stubStore) Update(ctx context.Context, collection string, where map[string]any, data map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, "update")
	return data, nil
}

func (s *stubStore) UpdateMany(ctx context.Context, collection string, where map[string]any, data map[string]any) ([]map[string]any, error) {
	s.calls = append(s.calls, "updateMany")
	return []map[string]any{data}, nil
}

func (s *stubStore) Delete(ctx context.Context, collection string, where map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, "delete")
	return map[string]any{"id": int64(1)}, nil
}

func (s *stubStore) DeleteMany(ctx context.Context, collection string, where map[string]any) ([]map[string]any, error) {
	s.calls = append(s.calls, "deleteMany")
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

func postsCollection() schema.Collection {
	return schema.Collection{
		Name: "post",
		Slug: "posts",
		Fields: map[string]schema.Field{
			"title": {Type: schema.FieldTypeString, Required: true},
		},
	}
}

type serverFixture struct {
	server *Server
	store  *stubStore
	engine *engine.Engine
}

func newFixture(t *testing.T, opts func(*Options)) *serverFixture {
	t.Helper()

	store := &stubStore{}
	registry, err := schema.NewRegistry([]schema.Collection{postsCollection()})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	eng := engine.New(engine.Config{
		Store:    store,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	o := Options{
		Engine: eng,
		Store:  store,
		Fanout: app.NewFanoutService(zerolog.Nop(), nil),
		Logger: zerolog.Nop(),
	}
	if opts != nil {
		opts(&o)
	}

	return &serverFixture{server: New(o), store: store, engine: eng}
}

func (f *serverFixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestServerTimeoutsConfigured(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Addr = "127.0.0.1:0"
		o.ReadTimeout = 5 * time.Second
		o.WriteTimeout = 7 * time.Second
	})

	srv := f.server.server
	if srv == nil {
		t.Fatal("http server not constructed")
	}
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("addr = %q", srv.Addr)
	}
	if srv.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", srv.ReadTimeout)
	}
	if srv.WriteTimeout != 7*time.Second {
		t.Errorf("write timeout = %v", srv.WriteTimeout)
	}
}

func TestUnknownMethodIs404(t *testing.T) {
	f := newFixture(t, nil)

	for _, method := range []string{"PATCH", "OPTIONS", "HEAD"} {
		w := f.do(method, "/posts", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s /posts = %d, want 404", method, w.Code)
		}
		if method != "HEAD" && !strings.Contains(w.Body.String(), "Not Found.") {
			t.Errorf("%s /posts body = %q", method, w.Body.String())
		}
	}
	if len(f.store.calls) != 0 {
		t.Errorf("store called for rejected methods: %v", f.store.calls)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do("GET", "/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /unknown = %d, want 404", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do("GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d", w.Code)
	}
}

func TestReadReturnsArray(t *testing.T) {
	f := newFixture(t, nil)
	f.store.findResult = []map[string]any{{"id": float64(1), "title": "hello"}}

	w := f.do("GET", "/posts?take=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /posts = %d, body %s", w.Code, w.Body.String())
	}

	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "hello" {
		t.Errorf("rows = %v", rows)
	}
}

func TestReadEmptyIsEmptyArray(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do("GET", "/posts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /posts = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestMalformedWhereFailsBeforeHooks(t *testing.T) {
	f := newFixture(t, nil)

	var hookRan bool
	f.engine.Hooks().OnBefore("post", func(ctx context.Context, args *engine.Args) (bool, error) {
		hookRan = true
		return true, nil
	})

	w := f.do("GET", "/posts?where=%7Bnot-json", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if hookRan {
		t.Error("before hook ran for malformed query")
	}
	if len(f.store.calls) != 0 {
		t.Errorf("store called for malformed query: %v", f.store.calls)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestMalformedBodyIs400(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do("POST", "/posts", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateRoundTrip(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do("POST", "/posts", `{"data":{"title":"hello"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var created map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created["title"] != "hello" || created["id"] != float64(1) {
		t.Errorf("created = %v", created)
	}
}

func TestAccessDeniedIs403(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Sessions = ports.SessionResolverFunc(func(r *http.Request) map[string]any {
			return map[string]any{"user_type": r.Header.Get("X-User-Type")}
		})
	})

	f.engine.Hooks().OnBefore("post", func(ctx context.Context, args *engine.Args) (bool, error) {
		return args.Ctx.Session["user_type"] == "admin", nil
	})

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("X-User-Type", "reader")
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false || body["message"] == "" {
		t.Errorf("body = %v", body)
	}
	if len(f.store.calls) != 0 {
		t.Errorf("store called for denied request: %v", f.store.calls)
	}
}

func TestHookWrittenResponseIsKept(t *testing.T) {
	f := newFixture(t, nil)

	f.engine.Hooks().OnBefore("post", func(ctx context.Context, args *engine.Args) (bool, error) {
		args.Ctx.Response.WriteHeader(http.StatusTeapot)
		args.Ctx.Response.Write([]byte(`{"custom":true}`))
		return false, nil
	})

	w := f.do("GET", "/posts", "")
	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want the hook's status", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"custom":true}` {
		t.Errorf("body = %q, hook response was overwritten", got)
	}
}

func TestFanoutFiresAfterResponse(t *testing.T) {
	delivered := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		bodies <- buf
		delivered <- r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	f := newFixture(t, func(o *Options) {
		o.GlobalWebhooks = []webhook.Webhook{{
			Name:        "test",
			URL:         receiver.URL,
			OnOperation: []string{"create"},
			Secret:      "hush",
		}}
	})

	w := f.do("POST", "/posts", `{"data":{"title":"hello"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	select {
	case req := <-delivered:
		if req.Header.Get("X-Quill-Collection") != "post" {
			t.Errorf("collection header = %q", req.Header.Get("X-Quill-Collection"))
		}
		if req.Header.Get("X-Quill-Operation") != "create" {
			t.Errorf("operation header = %q", req.Header.Get("X-Quill-Operation"))
		}
		sig := req.Header.Get("X-Quill-Signature")
		body := <-bodies
		if !webhook.VerifySignature(body, sig, "hush") {
			t.Error("delivery signature does not verify")
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode delivery: %v", err)
		}
		if payload["operation"] != "create" || payload["collection"] != "post" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestReadDoesNotFanOutWithoutSubscription(t *testing.T) {
	delivered := make(chan struct{}, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
	}))
	defer receiver.Close()

	f := newFixture(t, func(o *Options) {
		o.GlobalWebhooks = []webhook.Webhook{{
			Name:        "writes-only",
			URL:         receiver.URL,
			OnOperation: []string{"create", "update", "delete"},
		}}
	})

	if w := f.do("GET", "/posts", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	select {
	case <-delivered:
		t.Error("read operation fanned out to a writes-only webhook")
	case <-time.After(200 * time.Millisecond):
	}
}
