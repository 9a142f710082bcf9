package projector

import (
	"testing"

	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type author struct {
	ID    int
	Name  string
	Email *string
}

type article struct {
	ID       int
	AuthorID int
	Title    string
	Status   string `enum:"draft,published"`
}

type note struct {
	ID   int
	Body string
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	store := memstore.New()
	store.Register(&author{}).HasMany("articles", &article{}, "author_id")
	store.Register(&article{}).BelongsTo("author", &author{}, "author_id")

	reg := registry.New(registry.WithStorage(store))
	authors := reg.Define(&author{}, "Author")
	require.NoError(t, authors.Fields("id", "name", "email", "articles"))
	require.NoError(t, authors.Field("headlines", registry.Association("articles"), registry.Only("title")))
	require.NoError(t, authors.Field("article_count", registry.CountOf("articles")))
	require.NoError(t, authors.Field("secret", registry.Private(), registry.Getter(func(*author) any { return 1 })))
	require.NoError(t, authors.Field("meta", registry.AnyArguments(),
		registry.Type(map[string]any{"tags": []any{"string"}, "score": "float?"}),
		registry.Getter(func(*author) any { return nil })))

	articles := reg.Define(&article{}, "Article")
	require.NoError(t, articles.Fields("id", "title", "status", "author"))
	return reg
}

func fieldNames(t *Type) []string {
	out := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		out[i] = f.Name
	}
	return out
}

func TestProjectClosure(t *testing.T) {
	reg := newRegistry(t)
	p, err := Project(reg, &author{})
	require.NoError(t, err)

	require.Equal(t, "Author", p.Root.Name)
	names := make([]string, len(p.Types))
	for i, typ := range p.Types {
		names[i] = typ.Name
	}
	assert.Equal(t, []string{"Article", "ArticleOnlyTitle", "Author"}, names)
	assert.Equal(t, []string{"id", "name", "email", "articles", "headlines", "article_count", "meta"}, fieldNames(p.Root))

	restricted, ok := p.Object(registry.Object{Type: registry.ObjectOf(&article{}).Type, Only: []string{"title"}})
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, fieldNames(restricted))

	assert.Equal(t, []registry.ScalarKind{registry.ScalarAny, registry.ScalarFloat, registry.ScalarInt, registry.ScalarString},
		p.Scalars)

	var enumNames []string
	for _, e := range p.Enums {
		enumNames = append(enumNames, e.Name)
	}
	assert.Equal(t, []string{"ArticleStatus", "AuthorArticlesDirection"}, enumNames)
	e, ok := p.Enum(registry.Literal("asc", "desc"))
	require.True(t, ok)
	assert.Equal(t, []string{"asc", "desc"}, e.Values)
}

func TestProjectFieldShapes(t *testing.T) {
	reg := newRegistry(t)
	authors, ok := reg.TableByName("Author")
	require.True(t, ok)
	p, err := Project(reg, authors)
	require.NoError(t, err)

	byName := map[string]*Field{}
	for _, f := range p.Root.Fields {
		byName[f.Name] = f
	}
	assert.Equal(t, registry.Optional{Elem: registry.Scalar{Kind: registry.ScalarString}}, byName["email"].Type)
	assert.Equal(t, registry.Scalar{Kind: registry.ScalarInt}, byName["article_count"].Type)
	assert.True(t, byName["meta"].OpenArgs)

	list, ok := byName["headlines"].Type.(registry.List)
	require.True(t, ok)
	obj, ok := list.Elem.(registry.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, obj.Only)

	_, ok = registry.ArgumentSpec{Args: byName["articles"].Args}.Lookup("order_by")
	assert.True(t, ok)
}

func TestProjectNamespaces(t *testing.T) {
	reg := registry.New()
	notes := reg.Define(&note{}, "Note")
	require.NoError(t, notes.Fields("id"))
	require.NoError(t, notes.Field("body", registry.InNamespace("full")))

	p, err := Project(reg, &note{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, fieldNames(p.Root))

	p, err = Project(reg, &note{}, "full")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "body"}, fieldNames(p.Root))
}

func TestProjectErrors(t *testing.T) {
	reg := registry.New()
	_, err := Project(reg, &note{})
	assert.ErrorIs(t, err, registry.ErrInvalidType)

	notes := reg.Define(&note{}, "Note")
	require.NoError(t, notes.Field("bad", registry.Type("decimal"), registry.Getter(func(*note) any { return 0 })))
	_, err = Project(reg, &note{})
	assert.ErrorIs(t, err, registry.ErrInvalidType)
	assert.Contains(t, err.Error(), "Note.bad")

	require.NoError(t, notes.Field("bad", registry.Type(&author{}), registry.Getter(func(*note) any { return nil })))
	_, err = Project(reg, &note{})
	assert.ErrorIs(t, err, registry.ErrInvalidType, "unregistered object types cannot be projected")
}

func TestDerivedName(t *testing.T) {
	assert.Equal(t, "Post", DerivedName("Post", nil, nil))
	assert.Equal(t, "PostOnlyIdCreatedAt", DerivedName("Post", []string{"id", "created_at"}, nil))
	assert.Equal(t, "PostExceptBodyText", DerivedName("Post", nil, []string{"bodyText"}))
}

func TestScalarKind(t *testing.T) {
	tests := []struct {
		in   registry.Scalar
		want registry.ScalarKind
	}{
		{registry.Scalar{Kind: registry.ScalarInt}, registry.ScalarInt},
		{registry.Literal(1, 2), registry.ScalarInt},
		{registry.Literal(1, 2.5), registry.ScalarFloat},
		{registry.Literal("a", "b"), registry.ScalarString},
		{registry.Literal(true), registry.ScalarBoolean},
		{registry.Literal("a", 1), registry.ScalarAny},
		{registry.Literal(nil), registry.ScalarAny},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScalarKind(tt.in), "%v", tt.in.Literals)
	}
}
