package gormstore

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/hanpama/fieldgraph/internal/executor"
	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/storage"
)

type member struct {
	ID    uint
	Name  string
	Notes []*note
}

type note struct {
	ID       uint
	MemberID *uint
	Title    string
	Score    *int
	Kind     string `enum:"memo,todo"`
	Member   *member
}

func ptr[T any](v T) *T { return &v }

func openTest(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&member{}, &note{}))

	require.NoError(t, db.Create([]*member{{ID: 1, Name: "ann"}, {ID: 2, Name: "bob"}, {ID: 3, Name: "cat"}}).Error)
	require.NoError(t, db.Create([]*note{
		{ID: 10, MemberID: ptr(uint(1)), Title: "rex", Score: ptr(3), Kind: "memo"},
		{ID: 11, MemberID: ptr(uint(2)), Title: "tom", Kind: "todo"},
		{ID: 12, MemberID: ptr(uint(1)), Title: "ace", Score: ptr(1), Kind: "memo"},
		{ID: 13, MemberID: ptr(uint(1)), Title: "zed", Kind: "todo"},
		{ID: 14, Title: "stray", Kind: "memo"},
	}).Error)
	return New(db), db
}

func titles(rows []any) []string {
	out := []string{}
	for _, r := range rows {
		out = append(out, r.(*note).Title)
	}
	return out
}

var (
	memberType = reflect.TypeOf(&member{})
	noteType   = reflect.TypeOf(&note{})
)

func TestSchema(t *testing.T) {
	s, _ := openTest(t)

	rel, ok := s.Relation(memberType, "notes")
	require.True(t, ok)
	assert.Equal(t, storage.Relation{Name: "notes", Target: noteType, Many: true}, rel)

	rel, ok = s.Relation(noteType, "member")
	require.True(t, ok)
	assert.False(t, rel.Many)
	assert.False(t, rel.Required, "nullable foreign key makes the relation optional")
	assert.Equal(t, memberType, rel.Target)

	_, ok = s.Relation(memberType, "name")
	assert.False(t, ok)

	col, ok := s.Column(noteType, "score")
	require.True(t, ok)
	assert.Equal(t, storage.Column{Name: "score", Kind: storage.KindInt, Nullable: true}, col)

	col, ok = s.Column(noteType, "kind")
	require.True(t, ok)
	assert.Equal(t, []string{"memo", "todo"}, col.EnumValues)

	col, ok = s.Column(noteType, "id")
	require.True(t, ok)
	assert.True(t, col.PrimaryKey)

	_, ok = s.Column(noteType, "member")
	assert.False(t, ok)

	id, ok := s.PrimaryKey(&member{ID: 7})
	require.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestAttribute(t *testing.T) {
	s, _ := openTest(t)

	v, ok := s.Attribute(&note{ID: 11, Title: "tom"}, "score")
	require.True(t, ok)
	assert.Nil(t, v)

	v, ok = s.Attribute(&note{ID: 10, Score: ptr(3)}, "score")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = s.Attribute(&member{ID: 1}, "notes")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"rex", "ace", "zed"}, titles(v.([]any)))

	v, ok = s.Attribute(&note{ID: 14}, "member")
	require.True(t, ok)
	assert.Nil(t, v)

	loaded := &member{ID: 3, Notes: []*note{{Title: "cached"}}}
	v, ok = s.Attribute(loaded, "notes")
	require.True(t, ok)
	assert.Equal(t, loaded.Notes, v)
}

func TestPreloadAssociation(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()

	out, err := s.PreloadAssociation(ctx, memberType, []any{1, 2, 3}, "notes", storage.PreloadOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rex", "ace", "zed"}, titles(out[int64(1)]))
	assert.Equal(t, []string{"tom"}, titles(out[int64(2)]))
	empty, present := out[int64(3)]
	assert.True(t, present)
	assert.Empty(t, empty)

	out, err = s.PreloadAssociation(ctx, memberType, []any{1}, "notes", storage.PreloadOptions{Order: &storage.Order{Column: "score"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "ace", "rex"}, titles(out[int64(1)]))

	out, err = s.PreloadAssociation(ctx, noteType, []any{10, 14}, "member", storage.PreloadOptions{})
	require.NoError(t, err)
	require.Len(t, out[int64(10)], 1)
	assert.Equal(t, "ann", out[int64(10)][0].(*member).Name)
	assert.Empty(t, out[int64(14)])

	_, err = s.PreloadAssociation(ctx, memberType, []any{1}, "toys", storage.PreloadOptions{})
	assert.Error(t, err)
}

func TestGroupedCount(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()

	counts, err := s.GroupedCount(ctx, memberType, []any{1, 2, 3}, "notes")
	require.NoError(t, err)
	assert.Equal(t, map[any]int{int64(1): 3, int64(2): 1}, counts)

	counts, err = s.GroupedCount(ctx, noteType, []any{10, 14}, "member")
	require.NoError(t, err)
	assert.Equal(t, map[any]int{int64(10): 1}, counts)
}

func TestLoadTopN(t *testing.T) {
	s, _ := openTest(t)
	ctx := context.Background()

	top, err := s.LoadTopN(ctx, memberType, []any{1, 2, 3}, "notes", storage.TopNOptions{Limit: 2, Order: storage.Order{Column: "score", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"rex", "ace"}, titles(top[int64(1)]))
	assert.Equal(t, []string{"tom"}, titles(top[int64(2)]))
	assert.Empty(t, top[int64(3)])

	top, err = s.LoadTopN(ctx, memberType, []any{1}, "notes", storage.TopNOptions{Limit: 2, Order: storage.Order{Column: "score"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "ace"}, titles(top[int64(1)]))

	_, err = s.LoadTopN(ctx, memberType, []any{1}, "notes", storage.TopNOptions{Limit: 1, Order: storage.Order{Column: "nope"}})
	assert.Error(t, err)
}

func TestEagerLoad(t *testing.T) {
	s, _ := openTest(t)
	ann, bob := &member{ID: 1}, &member{ID: 2}
	n := &note{ID: 11, MemberID: ptr(uint(2))}

	require.NoError(t, s.EagerLoad(context.Background(), []any{ann, bob}, "notes"))
	assert.Len(t, ann.Notes, 3)
	assert.Len(t, bob.Notes, 1)

	require.NoError(t, s.EagerLoad(context.Background(), []any{n}, "member"))
	require.NotNil(t, n.Member)
	assert.Equal(t, "bob", n.Member.Name)
}

func TestSerializeThroughGorm(t *testing.T) {
	s, db := openTest(t)
	reg := registry.New(registry.WithStorage(s))
	members := reg.Define(&member{}, "Member")
	require.NoError(t, members.Fields("name", "notes"))
	require.NoError(t, members.Field("note_count", registry.CountOf("notes")))
	notes := reg.Define(&note{}, "Note")
	require.NoError(t, notes.Fields("title", "kind", "member"))
	require.NoError(t, notes.Field("score", registry.Orderable()))

	var roots []*member
	require.NoError(t, db.Order("id").Find(&roots).Error)

	q, err := query.Parse(`{ name note_count notes(limit: 1, order_by: "score", direction: "desc") { title member { name } } }`, "", nil)
	require.NoError(t, err)
	out, err := executor.New(reg).Serialize(context.Background(), roots, q)
	require.NoError(t, err)

	want := []any{
		map[string]any{"name": "ann", "note_count": 3, "notes": []any{
			map[string]any{"title": "rex", "member": map[string]any{"name": "ann"}},
		}},
		map[string]any{"name": "bob", "note_count": 1, "notes": []any{
			map[string]any{"title": "tom", "member": map[string]any{"name": "bob"}},
		}},
		map[string]any{"name": "cat", "note_count": 0, "notes": []any{}},
	}
	assert.Equal(t, want, out)
}
