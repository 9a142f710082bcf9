// Package memstore is an in-memory storage.Storage backed by reflection over
// plain structs. Column names follow gorm's default naming so models can be
// shared with the gorm adapter.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/hanpama/fieldgraph/internal/storage"
	"gorm.io/gorm/schema"
)

var naming = schema.NamingStrategy{}

// Store keeps records per model type and counts every batched call.
type Store struct {
	mu     sync.RWMutex
	models map[reflect.Type]*Model
	calls  map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		models: make(map[reflect.Type]*Model),
		calls:  make(map[string]int),
	}
}

// Model holds the metadata and rows of one registered struct type.
type Model struct {
	store     *Store
	typ       reflect.Type
	pk        string
	columns   map[string]storage.Column
	index     map[string][]int
	relations map[string]*relation
	records   []any
}

type relation struct {
	storage.Relation
	foreignKey string
	belongsTo  bool
}

// Register adds a model type. sample must be a pointer to a struct; the
// column "id" is its primary key.
func (s *Store) Register(sample any) *Model {
	typ := reflect.TypeOf(sample)
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("memstore: %T is not a pointer to struct", sample))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.models[typ]; ok {
		return m
	}
	m := &Model{
		store:     s,
		typ:       typ,
		pk:        "id",
		columns:   make(map[string]storage.Column),
		index:     make(map[string][]int),
		relations: make(map[string]*relation),
	}
	st := typ.Elem()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Tag.Get("db")
		if name == "" {
			name = naming.ColumnName("", f.Name)
		}
		m.index[name] = f.Index
		kind, nullable, ok := storage.KindOf(f.Type)
		if !ok {
			continue
		}
		col := storage.Column{Name: name, Kind: kind, Nullable: nullable, PrimaryKey: name == m.pk}
		if enum := f.Tag.Get("enum"); enum != "" {
			col.EnumValues = strings.Split(enum, ",")
		}
		m.columns[name] = col
	}
	s.models[typ] = m
	return m
}

// HasMany declares a one-to-many relation; foreignKey is the column on target
// pointing back at the owner.
func (m *Model) HasMany(name string, target any, foreignKey string) *Model {
	return m.relate(name, target, foreignKey, true, false)
}

// HasOne declares a one-to-one relation keyed on target's foreignKey.
func (m *Model) HasOne(name string, target any, foreignKey string) *Model {
	return m.relate(name, target, foreignKey, false, false)
}

// BelongsTo declares an inverse relation; foreignKey is the column on the
// owner. The relation is required when that column is not nullable.
func (m *Model) BelongsTo(name string, target any, foreignKey string) *Model {
	return m.relate(name, target, foreignKey, false, true)
}

func (m *Model) relate(name string, target any, foreignKey string, many, belongsTo bool) *Model {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	rel := &relation{
		Relation:   storage.Relation{Name: name, Target: reflect.TypeOf(target), Many: many},
		foreignKey: foreignKey,
		belongsTo:  belongsTo,
	}
	if belongsTo {
		col, ok := m.columns[foreignKey]
		rel.Required = ok && !col.Nullable
	}
	m.relations[name] = rel
	return m
}

// Insert stores records; each must be of a registered type.
func (s *Store) Insert(records ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		m, ok := s.models[reflect.TypeOf(r)]
		if !ok {
			panic(fmt.Sprintf("memstore: %T is not registered", r))
		}
		m.records = append(m.records, r)
	}
}

// All returns the stored records of sample's type in insertion order.
func (s *Store) All(sample any) []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[reflect.TypeOf(sample)]
	if !ok {
		return nil
	}
	return slices.Clone(m.records)
}

// Calls reports how many times the named batched method ran.
func (s *Store) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

// ResetCalls clears the call counters.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.calls)
}

func (s *Store) count(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func (s *Store) model(t reflect.Type) (*Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[t]
	return m, ok
}

// Relation implements storage.Schema.
func (s *Store) Relation(owner reflect.Type, name string) (storage.Relation, bool) {
	m, ok := s.model(owner)
	if !ok {
		return storage.Relation{}, false
	}
	rel, ok := m.relations[name]
	if !ok {
		return storage.Relation{}, false
	}
	return rel.Relation, true
}

// Column implements storage.Schema.
func (s *Store) Column(owner reflect.Type, name string) (storage.Column, bool) {
	m, ok := s.model(owner)
	if !ok {
		return storage.Column{}, false
	}
	col, ok := m.columns[name]
	return col, ok
}

// PrimaryKey implements storage.Schema.
func (s *Store) PrimaryKey(model any) (any, bool) {
	m, ok := s.model(reflect.TypeOf(model))
	if !ok {
		return nil, false
	}
	v, ok := m.field(model, m.pk)
	if !ok {
		return nil, false
	}
	return storage.Key(v), true
}

// Attribute implements storage.Schema. Relations are computed from the stored
// rows the way a lazy association reader would.
func (s *Store) Attribute(model any, name string) (any, bool) {
	m, ok := s.model(reflect.TypeOf(model))
	if !ok {
		return nil, false
	}
	if rel, ok := m.relations[name]; ok {
		id, _ := s.PrimaryKey(model)
		loaded := s.load(m, rel, []any{id}, []any{model})
		rows := loaded[s.ownerKey(m, rel, model)]
		if rel.Many {
			return rows, true
		}
		if len(rows) == 0 {
			return nil, true
		}
		return rows[0], true
	}
	v, ok := m.field(model, name)
	if !ok {
		return nil, false
	}
	return storage.Indirect(v), true
}

func (m *Model) field(model any, name string) (any, bool) {
	idx, ok := m.index[name]
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(model)
	if rv.IsNil() {
		return nil, false
	}
	return rv.Elem().FieldByIndex(idx).Interface(), true
}

// ownerKey is the value rows are grouped by for one owner: its primary key,
// or its foreign key for belongs-to relations.
func (s *Store) ownerKey(m *Model, rel *relation, owner any) any {
	if rel.belongsTo {
		v, _ := m.field(owner, rel.foreignKey)
		return storage.Key(v)
	}
	id, _ := s.PrimaryKey(owner)
	return id
}

// load groups target rows by owner key. For belongs-to relations the owner
// models are needed to read their foreign keys.
func (s *Store) load(m *Model, rel *relation, ids []any, owners []any) map[any][]any {
	target, ok := s.model(rel.Target)
	if !ok {
		return map[any][]any{}
	}
	out := make(map[any][]any)
	s.mu.RLock()
	rows := slices.Clone(target.records)
	s.mu.RUnlock()

	if rel.belongsTo {
		wanted := make(map[any]bool)
		for _, o := range owners {
			if k := s.ownerKey(m, rel, o); k != nil {
				wanted[k] = true
			}
		}
		for _, r := range rows {
			pk, _ := s.PrimaryKey(r)
			if wanted[pk] {
				out[pk] = append(out[pk], r)
			}
		}
		return out
	}

	wanted := make(map[any]bool, len(ids))
	for _, id := range ids {
		wanted[storage.Key(id)] = true
		out[storage.Key(id)] = []any{}
	}
	for _, r := range rows {
		v, _ := target.field(r, rel.foreignKey)
		k := storage.Key(v)
		if wanted[k] {
			out[k] = append(out[k], r)
		}
	}
	return out
}

// PreloadAssociation implements storage.AssociationLoader. Belongs-to results
// are keyed by the owner's primary key like every other relation.
func (s *Store) PreloadAssociation(ctx context.Context, owner reflect.Type, ids []any, relName string, opts storage.PreloadOptions) (map[any][]any, error) {
	s.count("PreloadAssociation")
	m, rel, err := s.lookup(owner, relName)
	if err != nil {
		return nil, err
	}
	if rel.belongsTo {
		return s.loadBelongsTo(m, rel, ids), nil
	}
	out := s.load(m, rel, ids, nil)
	if opts.Order != nil {
		target, _ := s.model(rel.Target)
		for k, rows := range out {
			s.sort(target, rows, *opts.Order)
			out[k] = rows
		}
	}
	return out, nil
}

func (s *Store) loadBelongsTo(m *Model, rel *relation, ids []any) map[any][]any {
	wanted := make(map[any]bool, len(ids))
	for _, id := range ids {
		wanted[storage.Key(id)] = true
	}
	s.mu.RLock()
	records := slices.Clone(m.records)
	s.mu.RUnlock()
	var owners []any
	for _, r := range records {
		pk, _ := s.PrimaryKey(r)
		if wanted[pk] {
			owners = append(owners, r)
		}
	}
	byFK := s.load(m, rel, nil, owners)
	out := make(map[any][]any, len(owners))
	for _, o := range owners {
		pk, _ := s.PrimaryKey(o)
		out[pk] = byFK[s.ownerKey(m, rel, o)]
	}
	return out
}

func (s *Store) sort(target *Model, rows []any, order storage.Order) {
	storage.SortRecords(rows,
		func(r any) any { v, _ := target.field(r, order.Column); return v },
		func(r any) any { id, _ := s.PrimaryKey(r); return id },
		order.Desc)
}

func (s *Store) lookup(owner reflect.Type, relName string) (*Model, *relation, error) {
	m, ok := s.model(owner)
	if !ok {
		return nil, nil, fmt.Errorf("memstore: %v is not registered", owner)
	}
	rel, ok := m.relations[relName]
	if !ok {
		return nil, nil, fmt.Errorf("memstore: %v has no relation %q", owner, relName)
	}
	return m, rel, nil
}

// GroupedCount implements storage.Counter. Owners without rows are omitted.
func (s *Store) GroupedCount(ctx context.Context, owner reflect.Type, ids []any, relName string) (map[any]int, error) {
	s.count("GroupedCount")
	m, rel, err := s.lookup(owner, relName)
	if err != nil {
		return nil, err
	}
	out := make(map[any]int)
	for k, rows := range s.load(m, rel, ids, nil) {
		if len(rows) > 0 {
			out[k] = len(rows)
		}
	}
	return out, nil
}

// EagerLoad implements storage.EagerLoader by assigning loaded rows to the
// struct field backing each relation, when the model declares one.
func (s *Store) EagerLoad(ctx context.Context, models []any, relations ...string) error {
	s.count("EagerLoad")
	byType := make(map[reflect.Type][]any)
	for _, model := range models {
		byType[reflect.TypeOf(model)] = append(byType[reflect.TypeOf(model)], model)
	}
	for typ, group := range byType {
		for _, name := range relations {
			m, rel, err := s.lookup(typ, name)
			if err != nil {
				return err
			}
			idx, ok := m.index[name]
			if !ok {
				continue
			}
			ids := make([]any, len(group))
			for i, o := range group {
				ids[i], _ = s.PrimaryKey(o)
			}
			loaded := s.load(m, rel, ids, group)
			for _, o := range group {
				assign(reflect.ValueOf(o).Elem().FieldByIndex(idx), loaded[s.ownerKey(m, rel, o)], rel.Many)
			}
		}
	}
	return nil
}

func assign(dst reflect.Value, rows []any, many bool) {
	if !many {
		if len(rows) > 0 && reflect.TypeOf(rows[0]).AssignableTo(dst.Type()) {
			dst.Set(reflect.ValueOf(rows[0]))
		}
		return
	}
	if dst.Kind() != reflect.Slice {
		return
	}
	out := reflect.MakeSlice(dst.Type(), 0, len(rows))
	for _, r := range rows {
		rv := reflect.ValueOf(r)
		if !rv.Type().AssignableTo(dst.Type().Elem()) {
			return
		}
		out = reflect.Append(out, rv)
	}
	dst.Set(out)
}

// TopN wraps a Store so that it also implements storage.TopNLoader.
type TopN struct {
	*Store
}

// LoadTopN implements storage.TopNLoader.
func (t TopN) LoadTopN(ctx context.Context, owner reflect.Type, ids []any, relName string, opts storage.TopNOptions) (map[any][]any, error) {
	t.count("LoadTopN")
	m, rel, err := t.lookup(owner, relName)
	if err != nil {
		return nil, err
	}
	out := t.load(m, rel, ids, nil)
	target, _ := t.model(rel.Target)
	for k, rows := range out {
		t.sort(target, rows, opts.Order)
		if opts.Limit >= 0 && len(rows) > opts.Limit {
			rows = rows[:opts.Limit]
		}
		out[k] = rows
	}
	return out, nil
}

var (
	_ storage.Storage    = (*Store)(nil)
	_ storage.TopNLoader = TopN{}
)
