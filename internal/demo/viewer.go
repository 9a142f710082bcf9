package demo

import (
	"context"
	"net/http"
	"strconv"
)

// Viewer is the user context of a request. A nil *Viewer is anonymous.
type Viewer struct {
	UserID uint
	Admin  bool
}

type viewerKey struct{}

// NewContext returns a copy of parent carrying v.
func NewContext(parent context.Context, v *Viewer) context.Context {
	return context.WithValue(parent, viewerKey{}, v)
}

// FromContext returns the viewer stored by NewContext, or nil.
func FromContext(ctx context.Context) *Viewer {
	v, _ := ctx.Value(viewerKey{}).(*Viewer)
	return v
}

// ViewerFromHeader reads X-User-Id and X-User-Role. It returns nil for
// anonymous requests.
func ViewerFromHeader(h http.Header) *Viewer {
	id, err := strconv.ParseUint(h.Get("X-User-Id"), 10, 64)
	if err != nil || id == 0 {
		return nil
	}
	return &Viewer{UserID: uint(id), Admin: h.Get("X-User-Role") == "admin"}
}

func viewerOf(v any) *Viewer {
	vw, _ := v.(*Viewer)
	return vw
}
