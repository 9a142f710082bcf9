package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/fieldgraph/internal/projector"
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

func newProjection(t *testing.T) *projector.Projection {
	t.Helper()
	store := memstore.New()
	store.Register(&author{}).HasMany("articles", &article{}, "author_id")
	store.Register(&article{}).BelongsTo("author", &author{}, "author_id")

	reg := registry.New(registry.WithStorage(store))
	authors := reg.Define(&author{}, "Author")
	require.NoError(t, authors.Fields("id", "name", "email", "articles"))
	require.NoError(t, authors.Field("headlines", registry.Association("articles"), registry.Only("title")))
	require.NoError(t, authors.Field("article_count", registry.CountOf("articles")))
	require.NoError(t, authors.Field("meta", registry.AnyArguments(),
		registry.Type(map[string]any{"score": "float?"}),
		registry.Getter(func(*author) any { return nil })))

	articles := reg.Define(&article{}, "Article")
	require.NoError(t, articles.Fields("id", "title", "status", "author"))

	p, err := projector.Project(reg, &author{})
	require.NoError(t, err)
	return p
}

func TestSchemaRenderSnapshot(t *testing.T) {
	s := FromProjection(newProjection(t))
	actual := RenderDefinition(s)
	require.NoError(t, Validate(actual), "rendered SDL must parse")

	snapshotPath := filepath.Join("testdata", "schema.graphql")

	// If snapshot doesn't exist, create it
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		require.NoError(t, os.MkdirAll("testdata", 0o755))
		err := os.WriteFile(snapshotPath, []byte(actual), 0644)
		require.NoError(t, err, "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}

	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")

	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("Rendered SDL mismatch (-want +got):\n%s", diff)
	}
}

func TestFromProjection(t *testing.T) {
	s := FromProjection(newProjection(t))
	require.Equal(t, "Author", s.GetQueryType().Name)

	for _, name := range []string{"Author", "Article", "ArticleOnlyTitle", "ArticleStatus", "AuthorArticlesDirection", "Any"} {
		assert.Contains(t, s.Types, name)
	}

	sdl := Render(s)
	assert.Contains(t, sdl, "  id: Int!\n")
	assert.Contains(t, sdl, "  email: String\n")
	assert.Contains(t, sdl, "  article_count: Int!\n")
	assert.Contains(t, sdl, "  meta: Any\n")
	assert.Contains(t, sdl, "  status: ArticleStatus!\n")
	assert.Contains(t, sdl,
		"  headlines(limit: Int, first: Int, last: Int, order: Any, order_by: String, direction: AuthorArticlesDirection): [ArticleOnlyTitle!]!\n",
		"direction enums are shared by value set")
	assert.Contains(t, sdl, "type ArticleOnlyTitle {\n  title: String!\n}\n")
	assert.Contains(t, sdl, "enum ArticleStatus {\n  draft\n  published\n}\n")
	assert.Contains(t, sdl,
		"  articles(limit: Int, first: Int, last: Int, order: Any, order_by: String, direction: AuthorArticlesDirection): [Article!]!\n")
	assert.NotContains(t, sdl, "scalar String")
}

func TestTypeRefHelpers(t *testing.T) {
	ref := NonNullType(ListType(NonNullType(NamedType("Article"))))
	assert.True(t, ref.IsNonNull())
	assert.True(t, ref.Unwrap().IsList())
	assert.Equal(t, "Article", ref.GetNamedType())
	assert.Equal(t, "[Article!]!", renderTypeRef(ref))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("type Query { a: Int!, b: [B] }\ntype B { c: String }\n"))

	err := Validate("schema { query: Root }\ntype Root { b: Missing }\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")

	err = Validate("type {")
	assert.Error(t, err)
}
