package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/persisted"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

type site struct {
	Title string
}

var captured struct {
	headers http.Header
	rid     string
}

func newTestHandler(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	reg := registry.New()
	sites := reg.Define(&site{}, "Site")
	if err := sites.Fields("title"); err != nil {
		t.Fatalf("fields: %v", err)
	}
	err := sites.Field("hello", registry.Resolver(func(ctx context.Context, _ any, _ registry.Input) (any, error) {
		captured.headers = HeadersFromContext(ctx)
		captured.rid, _ = reqid.FromContext(ctx)
		return "world", nil
	}))
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	gw := gateway.New(executor.New(reg), func(context.Context) (any, error) {
		return &site{Title: "demo"}, nil
	}, gateway.WithPersisted(persisted.NewMemory()))
	return Router(New(gw, opts...), Documents{SDL: "type Site {\n  title: String!\n}\n"})
}

func post(t *testing.T, h http.Handler, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestPostQuery(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ title hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	got := decode(t, w)
	data, _ := got["data"].(map[string]any)
	if data["title"] != "demo" || data["hello"] != "world" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if _, ok := got["errors"]; ok {
		t.Fatalf("unexpected errors: %s", w.Body.String())
	}
}

func TestStructuralAndBatch(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `[{"query":"{ title }"},{"query":{"title":true}}]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	for i, r := range out {
		if r["data"].(map[string]any)["title"] != "demo" {
			t.Fatalf("result %d: %v", i, r)
		}
	}
}

func TestQueryErrors(t *testing.T) {
	h := newTestHandler(t)

	w := post(t, h, `{"query":"{ title"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("syntax errors are reported with 200, got %d", w.Code)
	}
	errs := decode(t, w)["errors"].([]any)
	loc := errs[0].(map[string]any)["locations"].([]any)[0].(map[string]any)
	if loc["line"] != float64(1) {
		t.Fatalf("unexpected location %v", loc)
	}

	w = post(t, h, `{"query":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing query: expected 400 got %d", w.Code)
	}
	w = post(t, h, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid JSON: expected 400 got %d", w.Code)
	}
}

func TestGetWithPersistedQuery(t *testing.T) {
	h := newTestHandler(t)
	text := "{ title }"
	ext := `{"persistedQuery":{"version":1,"sha256Hash":"` + persisted.Hash(text) + `"}}`

	get := func(params url.Values) map[string]any {
		req := httptest.NewRequest("GET", "/graphql?"+params.Encode(), nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status %d: %s", w.Code, w.Body.String())
		}
		return decode(t, w)
	}

	miss := get(url.Values{"extensions": {ext}})
	if msg := miss["errors"].([]any)[0].(map[string]any)["message"]; msg != "PersistedQueryNotFound" {
		t.Fatalf("expected PersistedQueryNotFound, got %v", msg)
	}
	get(url.Values{"extensions": {ext}, "query": {text}})
	hit := get(url.Values{"extensions": {ext}})
	if hit["data"].(map[string]any)["title"] != "demo" {
		t.Fatalf("persisted query not served: %v", hit)
	}
}

func TestForwardedHeaders(t *testing.T) {
	h := newTestHandler(t, WithForwardHeaders("X-Test"))
	w := post(t, h, `{"query":"{ hello }"}`, "X-Test", "abc", "X-Other", "nope")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured.headers.Get("X-Test") != "abc" || captured.headers.Get("X-Other") != "" {
		t.Fatalf("headers not forwarded correctly: %v", captured.headers)
	}

	h = newTestHandler(t)
	post(t, h, `{"query":"{ hello }"}`, "X-Test", "abc")
	if captured.headers != nil {
		t.Fatalf("header should not be forwarded by default: %v", captured.headers)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	w := post(t, h, `{"query":"{ title }"}`, "Origin", "http://example.com")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(10))
	w := post(t, h, `{"query":"1234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestIDAndEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)
	var finished []events.HTTPFinish
	eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) { finished = append(finished, e) })

	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ hello }"}`, reqid.Header, "req-1")
	if captured.rid != "req-1" || w.Header().Get(reqid.Header) != "req-1" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", captured.rid, w.Header().Get(reqid.Header))
	}

	post(t, h, `{"query":"{ hello }"}`)
	if captured.rid == "" || captured.rid == "req-1" {
		t.Fatalf("expected a generated request id, got %q", captured.rid)
	}
	if len(finished) != 2 || finished[0].Status != http.StatusOK {
		t.Fatalf("unexpected http events: %+v", finished)
	}
	if finished[0].Route != "/graphql" || finished[0].Bytes == 0 {
		t.Fatalf("expected route and size on finish event, got %+v", finished[0])
	}
}

func TestDocumentsAndHealth(t *testing.T) {
	h := newTestHandler(t)
	for path, want := range map[string]int{
		"/healthz":        http.StatusOK,
		"/schema.graphql": http.StatusOK,
		"/schema.ts":      http.StatusNotFound,
	} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != want {
			t.Fatalf("%s: expected %d got %d", path, want, w.Code)
		}
	}
}
