package executor

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hanpama/fieldgraph/internal/eventbus"
	"github.com/hanpama/fieldgraph/internal/events"
	"github.com/hanpama/fieldgraph/internal/query"
	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int
	Name string
}

type post struct {
	ID     int
	UserID int
	Title  string
	Hidden bool
}

type comment struct {
	ID     int
	PostID int
	Body   string
	Rank   *int
}

type fixture struct {
	store    *memstore.Store
	reg      *registry.Registry
	users    *registry.Table
	posts    *registry.Table
	comments *registry.Table
	alice    *user
	bob      *user
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	store.Register(&user{}).HasMany("posts", &post{}, "user_id")
	store.Register(&post{}).HasMany("comments", &comment{}, "post_id").BelongsTo("user", &user{}, "user_id")
	store.Register(&comment{}).BelongsTo("post", &post{}, "post_id")

	alice, bob := &user{ID: 1, Name: "alice"}, &user{ID: 2, Name: "bob"}
	store.Insert(alice, bob)
	store.Insert(
		&post{ID: 10, UserID: 1, Title: "hello"},
		&post{ID: 11, UserID: 1, Title: "second", Hidden: true},
		&post{ID: 12, UserID: 2, Title: "bobs"},
	)
	store.Insert(
		&comment{ID: 100, PostID: 10, Body: "b-body", Rank: intPtr(2)},
		&comment{ID: 101, PostID: 10, Body: "a-body"},
		&comment{ID: 102, PostID: 11, Body: "c-body", Rank: intPtr(1)},
		&comment{ID: 103, PostID: 10, Body: "d-body", Rank: intPtr(5)},
	)

	reg := registry.New(registry.WithStorage(store))
	f := &fixture{store: store, reg: reg, alice: alice, bob: bob}
	f.users = reg.Define(&user{}, "User")
	require.NoError(t, f.users.Fields("id", "name", "posts"))
	f.posts = reg.Define(&post{}, "Post")
	require.NoError(t, f.posts.Fields("id", "title", "user", "comments"))
	f.comments = reg.Define(&comment{}, "Comment")
	require.NoError(t, f.comments.Fields("id"))
	require.NoError(t, f.comments.Field("body", registry.Orderable()))
	require.NoError(t, f.comments.Field("rank", registry.Orderable()))
	return f
}

func (f *fixture) serialize(t *testing.T, root any, q string, opts ...CallOption) any {
	t.Helper()
	out, err := New(f.reg).Serialize(context.Background(), root, mustParse(t, q), opts...)
	require.NoError(t, err)
	return out
}

func (f *fixture) serializeStructural(t *testing.T, root any, q any, opts ...CallOption) any {
	t.Helper()
	n, err := query.ParseStructural(q)
	require.NoError(t, err)
	out, err := New(f.reg).Serialize(context.Background(), root, n, opts...)
	require.NoError(t, err)
	return out
}

func mustParse(t *testing.T, q string) *query.Node {
	t.Helper()
	n, err := query.Parse(q, "", nil)
	require.NoError(t, err)
	return n
}

func assertOutput(t *testing.T, want, got any, msg ...string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch %v (-want +got):\n%s", msg, diff)
	}
}

func TestSerializeNestedAssociations(t *testing.T) {
	f := newFixture(t)
	got := f.serialize(t, f.alice, `{ name posts { title comments(first: 1, order_by: body) { body } } }`, WithoutPermission())
	assertOutput(t, map[string]any{
		"name": "alice",
		"posts": []any{
			map[string]any{"title": "hello", "comments": []any{map[string]any{"body": "a-body"}}},
			map[string]any{"title": "second", "comments": []any{map[string]any{"body": "c-body"}}},
		},
	}, got)
	assert.Equal(t, 2, f.store.Calls("PreloadAssociation"))
}

func TestSerializeOrdersByNullableColumn(t *testing.T) {
	f := newFixture(t)
	posts := f.store.All(&post{})
	got := f.serialize(t, posts[0], `{ comments(order_by: rank, direction: desc, first: 2) { id } }`)
	assertOutput(t, map[string]any{
		"comments": []any{map[string]any{"id": 103}, map[string]any{"id": 100}},
	}, got)

	got = f.serialize(t, posts[0], `{ comments(order_by: rank) { id } }`)
	assertOutput(t, map[string]any{
		"comments": []any{map[string]any{"id": 101}, map[string]any{"id": 100}, map[string]any{"id": 103}},
	}, got, "nil keys sort first")

	got = f.serialize(t, posts[0], `{ comments(last: 1) { id } }`)
	assertOutput(t, map[string]any{"comments": []any{map[string]any{"id": 103}}}, got)
}

func TestSerializeBatchesPerLevel(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	p := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[int]string, error) {
		calls.Add(1)
		out := map[int]string{}
		for _, u := range users {
			out[u.ID] = "#" + u.Name
		}
		return out, nil
	})
	require.NoError(t, f.users.Field("handle", registry.Preload(p)))
	require.NoError(t, f.users.Field("post_count", registry.CountOf("posts")))

	var many []*user
	for i := 0; i < 5; i++ {
		many = append(many, f.alice, f.bob)
	}
	got := f.serialize(t, many, `{ handle post_count posts { comments { id } } }`, WithoutPermission())
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 10)
	first := list[0].(map[string]any)
	second := list[1].(map[string]any)
	assert.Equal(t, "#alice", first["handle"])
	assert.Equal(t, 2, first["post_count"])
	assert.Equal(t, 1, second["post_count"])

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, f.store.Calls("GroupedCount"))
	assert.Equal(t, 2, f.store.Calls("PreloadAssociation"), "one association load per level")
}

func TestSerializeDeduplicatesByArguments(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	p := registry.NewPreloader(func(ctx context.Context, b registry.Batch) (any, error) {
		calls.Add(1)
		n, _ := b.Params.(map[string]any)["n"].(int)
		out := map[any]any{}
		for _, m := range b.Models {
			out[int64(m.(*user).ID)] = m.(*user).ID * n
		}
		return out, nil
	}, registry.Signature{Params: registry.ParamsNamed, Optional: []string{"n"}})
	require.NoError(t, f.users.Field("scaled", registry.Preload(p)))

	got := f.serialize(t, f.bob, `{ a: scaled(n: 3) b: scaled(n: 3) c: scaled(n: 5) }`)
	assertOutput(t, map[string]any{"a": 6, "b": 6, "c": 10}, got)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSerializeNamespaces(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Field("tag", registry.InNamespace("aaa"), registry.Getter(func(*user) any { return "aaa" })))
	require.NoError(t, f.users.Field("tag", registry.InNamespace("bbb"), registry.Getter(func(*user) any { return "bbb" })))

	got := f.serialize(t, f.alice, `{ tag }`, WithNamespaces("bbb", "aaa"))
	assertOutput(t, map[string]any{"tag": "bbb"}, got)
	got = f.serialize(t, f.alice, `{ tag name }`, WithNamespaces("aaa"))
	assertOutput(t, map[string]any{"tag": "aaa", "name": "alice"}, got)

	_, err := New(f.reg).Serialize(context.Background(), f.alice, mustParse(t, `{ tag }`))
	require.ErrorIs(t, err, registry.ErrInvalidQuery)
	assert.Equal(t, "invalid query: no serializer field `tag` namespaces: [] for User", err.Error())
}

func TestSerializeWildcard(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.comments.Field("secret", registry.Private(), registry.Getter(func(*comment) any { return "x" })))
	require.NoError(t, f.posts.Field("top_comments", registry.Association("comments"), registry.Only("body", "rank")))

	posts := f.store.All(&post{})
	got := f.serializeStructural(t, posts[1], map[string]any{"comments": "*"})
	assertOutput(t, map[string]any{
		"comments": []any{map[string]any{"id": 102, "body": "c-body", "rank": 1}},
	}, got)

	got = f.serializeStructural(t, posts[1], map[string]any{"top_comments": "*"})
	assertOutput(t, map[string]any{
		"top_comments": []any{map[string]any{"body": "c-body", "rank": 1}},
	}, got)

	got = f.serializeStructural(t, posts[1], map[string]any{
		"comments": []any{"*", map[string]any{"r": map[string]any{"field": "rank"}}},
	})
	assertOutput(t, map[string]any{
		"comments": []any{map[string]any{"id": 102, "body": "c-body", "r": 1}},
	}, got, "explicit selections replace their wildcard entry")

	for _, q := range []string{`{ comments { secret } }`, `{ top_comments { id } }`} {
		_, err := New(f.reg).Serialize(context.Background(), posts[1], mustParse(t, q))
		assert.ErrorIs(t, err, registry.ErrInvalidQuery, q)
	}
}

func TestSerializeRestrictedAssociationDefaultOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.posts.Field("top_comments", registry.Association("comments"), registry.Only("body", "rank")))
	posts := f.store.All(&post{})

	got := f.serialize(t, posts[0], `{ top_comments(first: 1) { body } }`)
	assertOutput(t, map[string]any{"top_comments": []any{map[string]any{"body": "b-body"}}}, got)

	got = f.serialize(t, posts[0], `{ top_comments(order: desc, first: 1) { body } }`)
	assertOutput(t, map[string]any{"top_comments": []any{map[string]any{"body": "d-body"}}}, got)

	_, err := New(f.reg).Serialize(context.Background(), posts[0], mustParse(t, `{ top_comments(first: 1, order_by: id) { body } }`))
	assert.ErrorIs(t, err, registry.ErrInvalidQuery)
}

func TestSerializeFirstCommentPerPost(t *testing.T) {
	type feed struct{ Name string }
	f := newFixture(t)
	f.store.Insert(
		&comment{ID: 104, PostID: 11, Body: "a2"},
		&comment{ID: 105, PostID: 12, Body: "z"},
		&comment{ID: 106, PostID: 12, Body: "m"},
	)
	feeds := f.reg.Define(&feed{}, "Feed")
	require.NoError(t, feeds.Field("posts", registry.Getter(func(*feed) any { return f.store.All(&post{}) })))

	got := f.serializeStructural(t, &feed{Name: "all"}, map[string]any{
		"posts": map[string]any{
			"comments": []any{"id", map[string]any{"params": map[string]any{"first": 1, "order_by": "body"}}},
		},
	}, WithoutPermission())
	assertOutput(t, map[string]any{
		"posts": []any{
			map[string]any{"comments": []any{map[string]any{"id": 101}}},
			map[string]any{"comments": []any{map[string]any{"id": 104}}},
			map[string]any{"comments": []any{map[string]any{"id": 106}}},
		},
	}, got)
	assert.Equal(t, 1, f.store.Calls("PreloadAssociation"))
}

func TestSerializeLooksUpPreloadedKeys(t *testing.T) {
	f := newFixture(t)
	byAny := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[any]any, error) {
		out := map[any]any{}
		for _, u := range users {
			out[u.ID] = "any-" + u.Name
		}
		return out, nil
	})
	byString := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[string]string, error) {
		out := map[string]string{}
		for _, u := range users {
			out[strconv.Itoa(u.ID)] = "str-" + u.Name
		}
		return out, nil
	})
	byUint := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[uint32]string, error) {
		out := map[uint32]string{}
		for _, u := range users {
			out[uint32(u.ID)] = "u32-" + u.Name
		}
		return out, nil
	})
	require.NoError(t, f.users.Field("a", registry.Preload(byAny), registry.Fallback("MISSING")))
	require.NoError(t, f.users.Field("s", registry.Preload(byString), registry.Fallback("MISSING")))
	require.NoError(t, f.users.Field("u", registry.Preload(byUint), registry.Fallback("MISSING")))

	got := f.serialize(t, []*user{f.alice, f.bob}, `{ a s u }`)
	assertOutput(t, []any{
		map[string]any{"a": "any-alice", "s": "str-alice", "u": "u32-alice"},
		map[string]any{"a": "any-bob", "s": "str-bob", "u": "u32-bob"},
	}, got)
}

func TestSerializeTextAndStructuralQueriesAgree(t *testing.T) {
	f := newFixture(t)
	text := f.serialize(t, f.alice, `{ name articles: posts(first: 1) { title } }`, WithoutPermission())

	structural, err := query.ParseStructural(map[string]any{
		"name":     true,
		"articles": map[string]any{"field": "posts", "params": map[string]any{"first": 1}, "attributes": []any{"title"}},
	})
	require.NoError(t, err)
	out, err := New(f.reg).Serialize(context.Background(), f.alice, structural, WithoutPermission())
	require.NoError(t, err)
	assertOutput(t, text, out)
	assertOutput(t, map[string]any{"name": "alice", "articles": []any{map[string]any{"title": "hello"}}}, out)
}

func TestSerializeObjectPermission(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.posts.Field("permission", registry.Private(), registry.Getter(func(p *post) any { return !p.Hidden })))
	require.NoError(t, f.users.Field("visible", registry.Private(), registry.Getter(func(u *user) any { return u.ID%2 == 1 })))

	got := f.serialize(t, f.alice, `{ posts { title } }`)
	assertOutput(t, map[string]any{"posts": []any{map[string]any{"title": "hello"}}}, got)

	got = f.serialize(t, f.alice, `{ posts { title } }`, WithoutPermission())
	assertOutput(t, map[string]any{"posts": []any{map[string]any{"title": "hello"}, map[string]any{"title": "second"}}}, got)

	got = f.serialize(t, f.store.All(&post{}), `{ title user { name } }`, WithPermission("visible"))
	assertOutput(t, []any{
		map[string]any{"title": "hello", "user": map[string]any{"name": "alice"}},
		map[string]any{"title": "second", "user": map[string]any{"name": "alice"}},
		map[string]any{"title": "bobs", "user": nil},
	}, got)

	assert.Nil(t, f.serialize(t, f.bob, `{ name }`, WithPermission("visible")))
}

func TestSerializeOddIDsOnly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.comments.Field("permission", registry.Private(), registry.Getter(func(c *comment) any { return c.ID%2 == 1 })))
	got := f.serialize(t, f.store.All(&comment{}), `{ id }`)
	assertOutput(t, []any{map[string]any{"id": 101}, map[string]any{"id": 103}}, got)
}

func TestSerializeScopedAccess(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.comments.Field("permission", registry.Private(), registry.Getter(func(c *comment) any { return c.Rank != nil })))
	require.NoError(t, f.comments.Field("reviewed", registry.Private(), registry.Getter(func(c *comment) any { return c.ID == 101 })))
	require.NoError(t, f.posts.Field("all_comments", registry.Association("comments"), registry.NoScopedAccess()))
	require.NoError(t, f.posts.Field("reviewed_comments", registry.Association("comments"), registry.ScopedAccess("reviewed")))

	posts := f.store.All(&post{})
	got := f.serialize(t, posts[0], `{ comments { id } all_comments { id } reviewed_comments { id } }`)
	assertOutput(t, map[string]any{
		"comments":          []any{map[string]any{"id": 100}, map[string]any{"id": 103}},
		"all_comments":      []any{map[string]any{"id": 100}, map[string]any{"id": 101}, map[string]any{"id": 103}},
		"reviewed_comments": []any{map[string]any{"id": 101}},
	}, got)
}

func TestSerializeFieldPermissionFallback(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.posts.Field("secret_title",
		registry.Getter(func(p *post) any { return p.Title }),
		registry.Permission(registry.Allow(func(ctx context.Context, p *post, in registry.Input) (bool, error) {
			return in.Context == "admin" || !p.Hidden, nil
		})),
		registry.Fallback("[hidden]"),
	))
	posts := f.store.All(&post{})
	got := f.serialize(t, posts[:2], `{ secret_title }`, WithoutPermission())
	assertOutput(t, []any{
		map[string]any{"secret_title": "hello"},
		map[string]any{"secret_title": "[hidden]"},
	}, got)

	got = f.serialize(t, posts[:2], `{ secret_title }`, WithoutPermission(), WithContext("admin"))
	assertOutput(t, []any{
		map[string]any{"secret_title": "hello"},
		map[string]any{"secret_title": "second"},
	}, got)
}

func TestSerializeCompositeAndCustom(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.posts.Field("permission", registry.Private(), registry.Getter(func(p *post) any { return !p.Hidden })))
	postsOf := func(u *user) []any {
		rows, _ := f.store.Attribute(u, "posts")
		return rows.([]any)
	}
	require.NoError(t, f.users.Field("page", registry.Getter(func(u *user) any {
		return registry.Composite{Models: postsOf(u), Build: func(results []any) any {
			return map[string]any{"total": len(results), "list": results}
		}}
	})))
	require.NoError(t, f.users.Field("by_id", registry.Getter(func(u *user) any {
		rows := postsOf(u)
		return registry.Custom{Models: rows, Reshape: func(lookup func(any) (map[string]any, bool)) any {
			out := map[string]any{}
			for _, r := range rows {
				if v, ok := lookup(r); ok {
					out[strconv.Itoa(r.(*post).ID)] = v
				}
			}
			return out
		}}
	})))

	got := f.serialize(t, f.alice, `{ page { title } by_id { title } }`)
	assertOutput(t, map[string]any{
		"page":  map[string]any{"total": 2, "list": []any{map[string]any{"title": "hello"}, nil}},
		"by_id": map[string]any{"10": map[string]any{"title": "hello"}},
	}, got)

	root := registry.Composite{Models: []any{f.alice, f.bob}, Build: func(r []any) any { return r }}
	got = f.serialize(t, root, `{ name }`)
	assertOutput(t, []any{map[string]any{"name": "alice"}, map[string]any{"name": "bob"}}, got)
}

func TestSerializeDefaultsAndIncludeID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.users.Field(DefaultsField, registry.Getter(func(u *user) any {
		return map[string]any{"kind": "user", "name": "ignored"}
	})))

	got := f.serialize(t, f.bob, `{ name }`, WithIncludeID())
	assertOutput(t, map[string]any{"id": 2, "name": "bob", "kind": "user"}, got, "id keeps the attribute type")

	got = f.serializeStructural(t, f.bob, "*")
	assertOutput(t, map[string]any{"id": 2, "name": "bob", "posts": []any{map[string]any{}}, "kind": "user"}, got)
}

func TestSerializeFailsBeforeLoading(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	p := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[int]int, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, f.users.Field("costly", registry.Preload(p)))

	for _, q := range []string{
		`{ costly nope }`,
		`{ costly posts(bogus: 1) { id } }`,
	} {
		_, err := New(f.reg).Serialize(context.Background(), f.alice, mustParse(t, q))
		assert.ErrorIs(t, err, registry.ErrInvalidQuery, q)
	}
	assert.Zero(t, calls.Load())
	assert.Zero(t, f.store.Calls("PreloadAssociation"))

	for _, q := range []string{`{ posts(order_by: title) { id } }`, `{ posts(direction: sideways) { id } }`} {
		_, err := New(f.reg).Serialize(context.Background(), f.alice, mustParse(t, q))
		assert.ErrorIs(t, err, registry.ErrInvalidQuery, q)
	}
}

func TestSerializePreloadErrorAborts(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	p := registry.PreloadFunc(func(ctx context.Context, users []*user) (map[int]int, error) {
		return nil, boom
	})
	p.Name = "broken"
	require.NoError(t, f.users.Field("broken", registry.Preload(p)))

	out, err := New(f.reg).Serialize(context.Background(), []*user{f.alice}, mustParse(t, `{ name broken }`))
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "preloader broken")
}

func TestSerializeConcurrentPreloads(t *testing.T) {
	f := newFixture(t)
	var done atomic.Int32
	mk := func(suffix string) *registry.Preloader {
		return registry.PreloadFunc(func(ctx context.Context, users []*user) (map[int]string, error) {
			defer done.Add(1)
			out := map[int]string{}
			for _, u := range users {
				out[u.ID] = u.Name + suffix
			}
			return out, nil
		})
	}
	pa, pb := mk("-a"), mk("-b")
	require.NoError(t, f.users.Field("both",
		registry.Preload(pa, pb),
		registry.Resolver(registry.Resolve(func(ctx context.Context, u *user, in registry.Input) (any, error) {
			if done.Load() != 2 {
				return nil, errors.New("resolver ran before preloads finished")
			}
			a := in.Preloaded[0].(map[int]string)[u.ID]
			b := in.Preloaded[1].(map[int]string)[u.ID]
			return a + "," + b, nil
		})),
	))

	q := mustParse(t, `{ both posts { title } }`)
	out, err := New(f.reg, WithConcurrency(4)).Serialize(context.Background(), []*user{f.alice, f.bob}, q, WithoutPermission())
	require.NoError(t, err)
	assertOutput(t, []any{
		map[string]any{"both": "alice-a,alice-b", "posts": []any{map[string]any{"title": "hello"}, map[string]any{"title": "second"}}},
		map[string]any{"both": "bob-a,bob-b", "posts": []any{map[string]any{"title": "bobs"}}},
	}, out)
}

func TestSerializePassesThroughUnregistered(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "plain", f.serialize(t, "plain", `{ name }`))
	assert.Nil(t, f.serialize(t, nil, `{ name }`))
	got := f.serialize(t, []any{f.alice, "x", nil}, `{ name }`)
	assertOutput(t, []any{map[string]any{"name": "alice"}, "x", nil}, got)
}

func TestSerializeExtendsResolvesInheritedFields(t *testing.T) {
	type admin struct {
		*user
		Level int
	}
	f := newFixture(t)
	admins := f.reg.Define(&admin{}, "Admin").Extends(f.users, func(v any) any { return v.(*admin).user })
	require.NoError(t, admins.Field("level", registry.Getter(func(a *admin) any { return a.Level })))

	got := f.serialize(t, &admin{user: f.alice, Level: 3}, `{ level name posts { title } }`, WithoutPermission())
	assertOutput(t, map[string]any{
		"level": 3,
		"name":  "alice",
		"posts": []any{map[string]any{"title": "hello"}, map[string]any{"title": "second"}},
	}, got)
}

func TestSerializePublishesPreloadEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var starts []events.PreloadStart
	var finishes []events.PreloadFinish
	var serialized []events.SerializeFinish
	eventbus.Subscribe(func(_ context.Context, e events.PreloadStart) { starts = append(starts, e) })
	eventbus.Subscribe(func(_ context.Context, e events.PreloadFinish) { finishes = append(finishes, e) })
	eventbus.Subscribe(func(_ context.Context, e events.SerializeFinish) { serialized = append(serialized, e) })

	f := newFixture(t)
	f.serialize(t, []*user{f.alice, f.bob}, `{ posts { id } }`, WithoutPermission())

	require.Len(t, starts, 1)
	assert.Equal(t, "User", starts[0].Type)
	assert.Equal(t, "User.posts", starts[0].Preloader)
	assert.Equal(t, 2, starts[0].Size)
	require.Len(t, finishes, 1)
	assert.Equal(t, starts[0].ID, finishes[0].ID)
	require.Len(t, serialized, 1)
	assert.Equal(t, "[User]", serialized[0].Root)
}
