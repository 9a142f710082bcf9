// Package server exposes a gateway over HTTP: the query endpoint, the
// rendered schema documents and a health check, routed with chi.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/gateway"
	"github.com/hanpama/fieldgraph/internal/reqid"
)

// Handler is an http.Handler that serves the query endpoint.
type Handler struct {
	gw  *gateway.Gateway
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// ForwardHeaders lists HTTP headers made available to resolvers through
	// HeadersFromContext. Header names are case-insensitive. Default is none.
	ForwardHeaders []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a query handler executing through gw.
func New(gw *gateway.Gateway, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{gw: gw, opt: op}
}

// Documents are the static schema renderings served next to the endpoint.
type Documents struct {
	SDL        string
	TypeScript string
}

// Router mounts h at /graphql together with the schema documents and
// /healthz.
func Router(h *Handler, docs Documents) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, false)
	})
	r.Handle("/graphql", h)
	r.Get("/schema.graphql", document(docs.SDL, "application/graphql; charset=utf-8"))
	r.Get("/schema.ts", document(docs.TypeScript, "application/typescript; charset=utf-8"))
	return r
}

func document(body, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if body == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}
}

// observe assigns the request id and publishes HTTP events around every
// request.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, rid := reqid.WithID(r.Context(), r.Header.Get(reqid.Header))
		w.Header().Set(reqid.Header, rid)
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		eventbus.Publish(ctx, events.HTTPStart{Request: r})
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			eventbus.Publish(ctx, events.HTTPFinish{
				Request:  r,
				Route:    route,
				Status:   status,
				Bytes:    ww.BytesWritten(),
				Duration: time.Since(start),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}

type headersKey struct{}

// HeadersFromContext returns the forwarded request headers.
func HeadersFromContext(ctx context.Context) http.Header {
	h, _ := ctx.Value(headersKey{}).(http.Header)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"), h.opt.Pretty)
		return
	}

	if len(h.opt.ForwardHeaders) > 0 {
		fwd := http.Header{}
		for _, name := range h.opt.ForwardHeaders {
			if v := r.Header.Values(name); len(v) > 0 {
				fwd[http.CanonicalHeaderKey(name)] = v
			}
		}
		ctx = context.WithValue(ctx, headersKey{}, fwd)
	}

	req, batch, status, msg := parseRequest(r, h.opt.MaxBodyBytes)
	if msg != "" {
		writeJSON(w, status, errorBody(msg), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]gateway.Response, len(batch))
		for i := range batch {
			out[i] = h.gw.Execute(ctx, batch[i])
		}
		writeJSON(w, http.StatusOK, out, h.opt.Pretty)
		return
	}

	res := h.gw.Execute(ctx, req)
	status = http.StatusOK
	if errors.Is(res.Err, gateway.ErrMissingQuery) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// ------------------ Request parsing ------------------

func parseRequest(r *http.Request, maxBody int64) (gateway.Request, []gateway.Request, int, string) {
	if r.Method == http.MethodGet {
		params := r.URL.Query()
		req := gateway.Request{OperationName: params.Get("operationName")}
		if q := params.Get("query"); q != "" {
			req.Query = q
		}
		if v := params.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return req, nil, http.StatusBadRequest, "invalid 'variables' JSON"
			}
		}
		if v := params.Get("extensions"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Extensions); err != nil {
				return req, nil, http.StatusBadRequest, "invalid 'extensions' JSON"
			}
		}
		return req, nil, 0, ""
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return gateway.Request{}, nil, http.StatusUnsupportedMediaType, "unsupported Content-Type"
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return gateway.Request{}, nil, http.StatusBadRequest, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return gateway.Request{}, nil, http.StatusRequestEntityTooLarge, "body too large"
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []gateway.Request
		if err := json.Unmarshal(body, &arr); err != nil {
			return gateway.Request{}, nil, http.StatusBadRequest, "invalid JSON"
		}
		if len(arr) == 0 {
			return gateway.Request{}, nil, http.StatusBadRequest, "empty batch"
		}
		return gateway.Request{}, arr, 0, ""
	}
	var req gateway.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return gateway.Request{}, nil, http.StatusBadRequest, "invalid JSON"
	}
	return req, nil, 0, ""
}

// ------------------ Response formatting ------------------

func errorBody(msg string) gateway.Response {
	return gateway.Response{Errors: []gateway.Error{{Message: msg}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
