package typescript

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
		registry.Type(map[string]any{"score": "float?", "*": "string"}),
		registry.Getter(func(*author) any { return nil })))

	articles := reg.Define(&article{}, "Article")
	require.NoError(t, articles.Fields("id", "title", "status", "author"))

	p, err := projector.Project(reg, &author{})
	require.NoError(t, err)
	return p
}

func TestRenderSnapshot(t *testing.T) {
	actual := Render(newProjection(t))

	snapshotPath := filepath.Join("testdata", "types.ts")
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		require.NoError(t, os.MkdirAll("testdata", 0o755))
		require.NoError(t, os.WriteFile(snapshotPath, []byte(actual), 0644), "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}
	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")
	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("TypeScript snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderDataTypes(t *testing.T) {
	ts := Render(newProjection(t))

	assert.Contains(t, ts, "export interface TypeAuthor {\n  id?: number\n  name?: string\n  email?: (string | null)\n")
	assert.Contains(t, ts, "  headlines?: (TypeArticleOnlyTitle [])\n")
	assert.Contains(t, ts, "  article_count?: number\n")
	assert.Contains(t, ts, "  meta?: { [key: string]: string; score: (number | null) }\n")
	assert.Contains(t, ts, "  status?: (\"draft\" | \"published\")\n")
	assert.Contains(t, ts, "  _params?: {\n    articles?: { limit?: number; first?: number; last?: number; order?: any; order_by?: string; direction?: (\"asc\" | \"desc\") }\n")
	assert.Contains(t, ts, "    meta?: { [key: string]: any }\n  }\n")
	assert.Contains(t, ts, "  _meta?: { name: 'Author'; query: TypeAuthorQueryBase }\n}\n")
	assert.Contains(t, ts, "export interface TypeArticleOnlyTitle {\n  title?: string\n  _meta?: { name: 'ArticleOnlyTitle'; query: TypeArticleOnlyTitleQueryBase }\n}\n")
}

func TestRenderQueryTypes(t *testing.T) {
	ts := Render(newProjection(t))

	assert.Contains(t, ts, "export type TypeAuthorQuery = keyof (TypeAuthorQueryBase) | (keyof (TypeAuthorQueryBase))[] | TypeAuthorQueryBase\n"+
		"export interface TypeAuthorQueryBase {\n  id?: true | { as: string }\n")
	assert.Contains(t, ts, "  headlines?: true | TypeArticleOnlyTitleQuery | { as?: string; params?: { limit?: number;")
	assert.Contains(t, ts, "  article_count?: true | { as: string }\n")
	assert.Contains(t, ts, "  '*'?: true\n}\n")
}

func TestRenderQueryBuilder(t *testing.T) {
	js := RenderQueryBuilder(newProjection(t))

	assert.Contains(t, js, "export const definitions = {\n  Article: {\n    fields: {\n      id: 0 as number,\n")
	assert.Contains(t, js, "      status: \"draft\" as (\"draft\" | \"published\")")
	assert.Contains(t, js, "      headlines: \"ArticleOnlyTitle\"")
	assert.Contains(t, js, "      meta: {\"score\":null} as { [key: string]: string; score: (number | null) }")
	assert.Contains(t, js, "export function buildQuery<DataType extends DataTypeBase>(")
}

func TestScalarType(t *testing.T) {
	tests := []struct {
		in   registry.Scalar
		want string
	}{
		{registry.Scalar{Kind: registry.ScalarInt}, "number"},
		{registry.Scalar{Kind: registry.ScalarFloat}, "number"},
		{registry.Scalar{Kind: registry.ScalarBoolean}, "boolean"},
		{registry.Scalar{Kind: registry.ScalarAny}, "any"},
		{registry.Literal("x"), `"x"`},
		{registry.Literal(1, "a", true), `(1 | "a" | true)`},
		{registry.Literal(nil), "null"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scalarType(tt.in))
	}
}
