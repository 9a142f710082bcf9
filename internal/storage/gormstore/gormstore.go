// Package gormstore implements storage.Storage over a gorm database. Model
// metadata comes from gorm's schema parser; relations are addressed by the
// snake_case name of their struct field.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/hanpama/fieldgraph/internal/storage"
)

// ErrUnsupportedRelation is returned for many-to-many and composite-key
// relations.
var ErrUnsupportedRelation = errors.New("gormstore: unsupported relation")

const rankColumn = "fieldgraph_rank"

// Store reads models through db.
type Store struct {
	db    *gorm.DB
	cache sync.Map
}

// New returns a store bound to db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) parse(t reflect.Type) (*schema.Schema, error) {
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("gormstore: %v is not a pointer to struct", t)
	}
	return schema.Parse(reflect.New(t.Elem()).Interface(), &s.cache, s.db.NamingStrategy)
}

func (s *Store) relationship(owner reflect.Type, name string) (*schema.Schema, *schema.Relationship, error) {
	sch, err := s.parse(owner)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range sch.Relationships.Relations {
		if rel.Name == name || s.db.NamingStrategy.ColumnName("", rel.Name) == name {
			return sch, rel, nil
		}
	}
	return nil, nil, fmt.Errorf("gormstore: %v has no relation %q", owner, name)
}

// reference returns the single key pair joining rel. For polymorphic
// relations the type discriminator comes back as a condition.
func reference(rel *schema.Relationship) (*schema.Reference, []clause.Expression, error) {
	if rel.Type == schema.Many2Many {
		return nil, nil, fmt.Errorf("%w: %s is many-to-many", ErrUnsupportedRelation, rel.Name)
	}
	var ref *schema.Reference
	var conds []clause.Expression
	for _, r := range rel.References {
		if r.PrimaryValue != "" {
			conds = append(conds, clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: r.ForeignKey.DBName}, Value: r.PrimaryValue})
			continue
		}
		if ref != nil {
			return nil, nil, fmt.Errorf("%w: %s has a composite key", ErrUnsupportedRelation, rel.Name)
		}
		ref = r
	}
	if ref == nil {
		return nil, nil, fmt.Errorf("%w: %s has no key", ErrUnsupportedRelation, rel.Name)
	}
	return ref, conds, nil
}

// Relation implements storage.Schema.
func (s *Store) Relation(owner reflect.Type, name string) (storage.Relation, bool) {
	_, rel, err := s.relationship(owner, name)
	if err != nil || rel.Type == schema.Many2Many {
		return storage.Relation{}, false
	}
	out := storage.Relation{
		Name:   name,
		Target: reflect.PointerTo(rel.FieldSchema.ModelType),
		Many:   rel.Type == schema.HasMany,
	}
	if rel.Type == schema.BelongsTo {
		if ref, _, err := reference(rel); err == nil {
			out.Required = ref.ForeignKey.FieldType.Kind() != reflect.Pointer
		}
	}
	return out, true
}

// Column implements storage.Schema.
func (s *Store) Column(owner reflect.Type, name string) (storage.Column, bool) {
	sch, err := s.parse(owner)
	if err != nil {
		return storage.Column{}, false
	}
	f := sch.LookUpField(name)
	if f == nil || f.DBName == "" {
		return storage.Column{}, false
	}
	kind, nullable, ok := storage.KindOf(f.FieldType)
	if !ok {
		return storage.Column{}, false
	}
	col := storage.Column{Name: f.DBName, Kind: kind, Nullable: nullable, PrimaryKey: f.PrimaryKey}
	if enum := f.Tag.Get("enum"); enum != "" {
		col.EnumValues = strings.Split(enum, ",")
	}
	return col, true
}

// PrimaryKey implements storage.Schema.
func (s *Store) PrimaryKey(model any) (any, bool) {
	sch, err := s.parse(reflect.TypeOf(model))
	if err != nil || sch.PrioritizedPrimaryField == nil {
		return nil, false
	}
	v, ok := fieldValue(model, sch.PrioritizedPrimaryField)
	if !ok {
		return nil, false
	}
	return storage.Key(v), true
}

// Attribute implements storage.Schema. Relations already populated on the
// struct are returned as is; otherwise they are loaded for this one model.
func (s *Store) Attribute(model any, name string) (any, bool) {
	typ := reflect.TypeOf(model)
	sch, err := s.parse(typ)
	if err != nil {
		return nil, false
	}
	if _, rel, err := s.relationship(typ, name); err == nil {
		if v, ok := fieldValue(model, rel.Field); ok && !isEmpty(v) {
			return v, true
		}
		id, ok := s.PrimaryKey(model)
		if !ok {
			return nil, false
		}
		loaded, err := s.PreloadAssociation(context.Background(), typ, []any{id}, name, storage.PreloadOptions{})
		if err != nil {
			s.db.Logger.Error(context.Background(), "gormstore: lazy load %s: %v", name, err)
			return nil, false
		}
		rows := loaded[id]
		if rel.Type == schema.HasMany {
			if rows == nil {
				rows = []any{}
			}
			return rows, true
		}
		if len(rows) == 0 {
			return nil, true
		}
		return rows[0], true
	}
	f := sch.LookUpField(name)
	if f == nil {
		return nil, false
	}
	v, ok := fieldValue(model, f)
	if !ok {
		return nil, false
	}
	return storage.Indirect(v), true
}

// PreloadAssociation implements storage.AssociationLoader. Rows are keyed by
// the owner's primary key for every relation kind.
func (s *Store) PreloadAssociation(ctx context.Context, owner reflect.Type, ids []any, name string, opts storage.PreloadOptions) (map[any][]any, error) {
	sch, rel, err := s.relationship(owner, name)
	if err != nil {
		return nil, err
	}
	ref, conds, err := reference(rel)
	if err != nil {
		return nil, err
	}
	var out map[any][]any
	if rel.Type == schema.BelongsTo {
		out, err = s.loadBelongsTo(ctx, sch, rel, ref, ids)
	} else {
		out, err = s.loadHas(ctx, rel, ref, conds, ids)
	}
	if err != nil {
		return nil, err
	}
	if opts.Order != nil {
		if err := s.sort(rel.FieldSchema, out, *opts.Order); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadHas(ctx context.Context, rel *schema.Relationship, ref *schema.Reference, conds []clause.Expression, ids []any) (map[any][]any, error) {
	out := make(map[any][]any, len(ids))
	for _, id := range ids {
		out[storage.Key(id)] = []any{}
	}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.find(ctx, rel.FieldSchema, append(conds, in(ref.ForeignKey.DBName, ids))...)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		v, _ := fieldValue(r, ref.ForeignKey)
		k := storage.Key(v)
		if _, ok := out[k]; ok {
			out[k] = append(out[k], r)
		}
	}
	return out, nil
}

func (s *Store) loadBelongsTo(ctx context.Context, sch *schema.Schema, rel *schema.Relationship, ref *schema.Reference, ids []any) (map[any][]any, error) {
	out := make(map[any][]any, len(ids))
	if len(ids) == 0 || sch.PrioritizedPrimaryField == nil {
		return out, nil
	}
	owners, err := s.find(ctx, sch, in(sch.PrioritizedPrimaryField.DBName, ids))
	if err != nil {
		return nil, err
	}
	var fks []any
	seen := make(map[any]bool)
	for _, o := range owners {
		v, _ := fieldValue(o, ref.ForeignKey)
		if k := storage.Key(v); k != nil && !seen[k] {
			seen[k] = true
			fks = append(fks, k)
		}
	}
	targets := make(map[any]any)
	if len(fks) > 0 {
		rows, err := s.find(ctx, rel.FieldSchema, in(ref.PrimaryKey.DBName, fks))
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			v, _ := fieldValue(r, ref.PrimaryKey)
			targets[storage.Key(v)] = r
		}
	}
	for _, o := range owners {
		pk, _ := s.PrimaryKey(o)
		v, _ := fieldValue(o, ref.ForeignKey)
		if t, ok := targets[storage.Key(v)]; ok {
			out[pk] = []any{t}
		} else {
			out[pk] = nil
		}
	}
	return out, nil
}

// find loads every row of sch matching conds as pointers to sch's struct.
func (s *Store) find(ctx context.Context, sch *schema.Schema, conds ...clause.Expression) ([]any, error) {
	dest := reflect.New(reflect.SliceOf(reflect.PointerTo(sch.ModelType)))
	tx := s.db.WithContext(ctx).Model(reflect.New(sch.ModelType).Interface())
	for _, c := range conds {
		tx = tx.Where(c)
	}
	if err := tx.Find(dest.Interface()).Error; err != nil {
		return nil, err
	}
	return toAny(dest.Elem()), nil
}

func (s *Store) sort(target *schema.Schema, groups map[any][]any, order storage.Order) error {
	f := target.LookUpField(order.Column)
	if f == nil {
		return fmt.Errorf("gormstore: %s has no column %q", target.Name, order.Column)
	}
	for _, rows := range groups {
		storage.SortRecords(rows,
			func(r any) any { v, _ := fieldValue(r, f); return v },
			func(r any) any { id, _ := s.PrimaryKey(r); return id },
			order.Desc)
	}
	return nil
}

// GroupedCount implements storage.Counter with one GROUP BY query. Owners
// without rows are omitted.
func (s *Store) GroupedCount(ctx context.Context, owner reflect.Type, ids []any, name string) (map[any]int, error) {
	_, rel, err := s.relationship(owner, name)
	if err != nil {
		return nil, err
	}
	out := make(map[any]int)
	if rel.Type == schema.BelongsTo {
		loaded, err := s.PreloadAssociation(ctx, owner, ids, name, storage.PreloadOptions{})
		if err != nil {
			return nil, err
		}
		for k, rows := range loaded {
			if len(rows) > 0 {
				out[k] = len(rows)
			}
		}
		return out, nil
	}
	ref, conds, err := reference(rel)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	tx := s.db.WithContext(ctx).Model(reflect.New(rel.FieldSchema.ModelType).Interface())
	fk := tx.Statement.Quote(ref.ForeignKey.DBName)
	tx = tx.Select(fk + ", count(*)").Where(in(ref.ForeignKey.DBName, ids))
	for _, c := range conds {
		tx = tx.Where(c)
	}
	rows, err := tx.Group(ref.ForeignKey.DBName).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k any
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[storage.Key(k)] = n
	}
	return out, rows.Err()
}

// LoadTopN implements storage.TopNLoader with a ROW_NUMBER window so each
// owner gets at most opts.Limit rows from a single query. Null sort keys come
// first in ascending order, matching storage.SortRecords.
func (s *Store) LoadTopN(ctx context.Context, owner reflect.Type, ids []any, name string, opts storage.TopNOptions) (map[any][]any, error) {
	_, rel, err := s.relationship(owner, name)
	if err != nil {
		return nil, err
	}
	if rel.Type != schema.HasMany || opts.Limit < 0 {
		return s.PreloadAssociation(ctx, owner, ids, name, storage.PreloadOptions{Order: &opts.Order})
	}
	ref, conds, err := reference(rel)
	if err != nil {
		return nil, err
	}
	target := rel.FieldSchema
	col := target.LookUpField(opts.Order.Column)
	if col == nil || col.DBName == "" {
		return nil, fmt.Errorf("gormstore: %s has no column %q", target.Name, opts.Order.Column)
	}
	if target.PrioritizedPrimaryField == nil {
		return nil, fmt.Errorf("gormstore: %s has no primary key", target.Name)
	}
	out := make(map[any][]any, len(ids))
	for _, id := range ids {
		out[storage.Key(id)] = []any{}
	}
	if len(ids) == 0 || opts.Limit == 0 {
		return out, nil
	}

	tx := s.db.WithContext(ctx)
	q := tx.Statement.Quote
	c, pk := q(col.DBName), q(target.PrioritizedPrimaryField.DBName)
	orderBy := fmt.Sprintf("(%s IS NULL) DESC, %s ASC, %s ASC", c, c, pk)
	if opts.Order.Desc {
		orderBy = fmt.Sprintf("(%s IS NULL) ASC, %s DESC, %s DESC", c, c, pk)
	}
	inner := tx.Session(&gorm.Session{NewDB: true}).
		Model(reflect.New(target.ModelType).Interface()).
		Select(fmt.Sprintf("*, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS %s", q(ref.ForeignKey.DBName), orderBy, rankColumn)).
		Where(in(ref.ForeignKey.DBName, ids))
	for _, cond := range conds {
		inner = inner.Where(cond)
	}
	dest := reflect.New(reflect.SliceOf(reflect.PointerTo(target.ModelType)))
	err = tx.Table("(?) AS ranked", inner).
		Where(fmt.Sprintf("%s <= ?", rankColumn), opts.Limit).
		Find(dest.Interface()).Error
	if err != nil {
		return nil, err
	}
	for _, r := range toAny(dest.Elem()) {
		v, _ := fieldValue(r, ref.ForeignKey)
		k := storage.Key(v)
		if _, ok := out[k]; ok {
			out[k] = append(out[k], r)
		}
	}
	if err := s.sort(target, out, opts.Order); err != nil {
		return nil, err
	}
	return out, nil
}

// EagerLoad implements storage.EagerLoader by assigning loaded rows to the
// struct field backing each relation.
func (s *Store) EagerLoad(ctx context.Context, models []any, relations ...string) error {
	byType := make(map[reflect.Type][]any)
	var order []reflect.Type
	for _, m := range models {
		t := reflect.TypeOf(m)
		if _, ok := byType[t]; !ok {
			order = append(order, t)
		}
		byType[t] = append(byType[t], m)
	}
	for _, t := range order {
		group := byType[t]
		ids := make([]any, 0, len(group))
		for _, m := range group {
			if id, ok := s.PrimaryKey(m); ok {
				ids = append(ids, id)
			}
		}
		for _, name := range relations {
			_, rel, err := s.relationship(t, name)
			if err != nil {
				return err
			}
			loaded, err := s.PreloadAssociation(ctx, t, ids, name, storage.PreloadOptions{})
			if err != nil {
				return err
			}
			for _, m := range group {
				id, _ := s.PrimaryKey(m)
				dst, err := reflect.ValueOf(m).Elem().FieldByIndexErr(rel.Field.StructField.Index)
				if err != nil {
					continue
				}
				assign(dst, loaded[id], rel.Type == schema.HasMany)
			}
		}
	}
	return nil
}

func in(column string, values []any) clause.Expression {
	return clause.IN{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Values: values}
}

func fieldValue(model any, f *schema.Field) (any, bool) {
	rv := reflect.ValueOf(model)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}
	v, err := rv.Elem().FieldByIndexErr(f.StructField.Index)
	if err != nil {
		return nil, true
	}
	return v.Interface(), true
}

func isEmpty(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	case reflect.Struct:
		return rv.IsZero()
	}
	return false
}

func toAny(slice reflect.Value) []any {
	out := make([]any, slice.Len())
	for i := range out {
		out[i] = slice.Index(i).Interface()
	}
	return out
}

func assign(dst reflect.Value, rows []any, many bool) {
	if !many {
		if len(rows) == 0 {
			return
		}
		rv := reflect.ValueOf(rows[0])
		switch {
		case rv.Type().AssignableTo(dst.Type()):
			dst.Set(rv)
		case rv.Elem().Type().AssignableTo(dst.Type()):
			dst.Set(rv.Elem())
		}
		return
	}
	if dst.Kind() != reflect.Slice {
		return
	}
	out := reflect.MakeSlice(dst.Type(), 0, len(rows))
	for _, r := range rows {
		rv := reflect.ValueOf(r)
		switch {
		case rv.Type().AssignableTo(dst.Type().Elem()):
			out = reflect.Append(out, rv)
		case rv.Elem().Type().AssignableTo(dst.Type().Elem()):
			out = reflect.Append(out, rv.Elem())
		default:
			return
		}
	}
	dst.Set(out)
}

var (
	_ storage.Storage    = (*Store)(nil)
	_ storage.TopNLoader = (*Store)(nil)
)
