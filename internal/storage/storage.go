// Package storage declares the collaborator interfaces the serializer calls
// into. Implementations load records and associations by key; the core never
// issues queries of its own.
package storage

import (
	"context"
	"reflect"
)

// Relation describes an association declared on an owner type.
type Relation struct {
	Name     string
	Target   reflect.Type
	Many     bool
	Required bool
}

// ColumnKind is the storage-level type of a column.
type ColumnKind int

const (
	KindUnknown ColumnKind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindTime
	KindBytes
)

// Column describes a persisted attribute of a type.
type Column struct {
	Name       string
	Kind       ColumnKind
	Nullable   bool
	PrimaryKey bool
	EnumValues []string
}

// Order is a single sort key.
type Order struct {
	Column string
	Desc   bool
}

// PreloadOptions narrows an association load. Adapters may honor Order to
// presort rows; per-owner limits are applied by the caller.
type PreloadOptions struct {
	Order *Order
}

// TopNOptions requests at most Limit rows per owner in the given order.
type TopNOptions struct {
	Limit int
	Order Order
}

// Schema exposes model metadata and in-memory attribute access.
type Schema interface {
	// Relation returns the association named name on owner.
	Relation(owner reflect.Type, name string) (Relation, bool)
	// Column returns the persisted attribute named name on owner.
	Column(owner reflect.Type, name string) (Column, bool)
	// PrimaryKey returns the normalized primary key of model.
	PrimaryKey(model any) (any, bool)
	// Attribute reads a column or an already loaded relation from model.
	// Nil pointers are reported as nil.
	Attribute(model any, name string) (any, bool)
}

// AssociationLoader loads a relation for a set of owners in one batch.
type AssociationLoader interface {
	PreloadAssociation(ctx context.Context, owner reflect.Type, ids []any, relation string, opts PreloadOptions) (map[any][]any, error)
}

// TopNLoader is implemented by adapters that can cap rows per owner in a
// single query.
type TopNLoader interface {
	LoadTopN(ctx context.Context, owner reflect.Type, ids []any, relation string, opts TopNOptions) (map[any][]any, error)
}

// Counter counts related rows per owner.
type Counter interface {
	GroupedCount(ctx context.Context, owner reflect.Type, ids []any, relation string) (map[any]int, error)
}

// EagerLoader populates relations on already loaded models. It is a hint:
// callers ignore what it loads and only rely on it not failing.
type EagerLoader interface {
	EagerLoad(ctx context.Context, models []any, relations ...string) error
}

// Storage is the full collaborator surface.
type Storage interface {
	Schema
	AssociationLoader
	Counter
	EagerLoader
}
