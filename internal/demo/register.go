package demo

import (
	"context"
	"errors"
	"reflect"

	"github.com/hanpama/fieldgraph/internal/registry"
	"github.com/hanpama/fieldgraph/internal/storage"
)

// Admin is the namespace that exposes every user's email and every post.
const Admin registry.Namespace = "admin"

var commentType = reflect.TypeOf(&Comment{})

// Register defines the demo types on reg and returns the Query table.
// loader backs the my_stars preloader; catalog backs the root collections.
func Register(reg *registry.Registry, loader storage.AssociationLoader, catalog Catalog) (*registry.Table, error) {
	var errs []error
	check := func(err error) { errs = append(errs, err) }

	users := reg.Define(&User{}, "User")
	check(users.Fields("id", "name", "role", "posts", "stars"))
	check(users.Field("created_at", registry.Orderable()))
	check(users.Field("post_count", registry.CountOf("posts")))
	check(users.Field("email",
		registry.Type("string?"),
		registry.Permission(func(_ context.Context, obj any, in registry.Input) (bool, error) {
			v := viewerOf(in.Context)
			u, ok := obj.(*User)
			return ok && v != nil && (v.Admin || v.UserID == u.ID), nil
		}),
	))
	check(users.Field("email", registry.InNamespace(Admin)))

	posts := reg.Define(&Post{}, "Post")
	check(posts.Fields("title", "body", "status", "user", "comments"))
	check(posts.Field("id", registry.Orderable()))
	check(posts.Field("created_at", registry.Orderable()))
	check(posts.Field("comment_count", registry.CountOf("comments")))
	check(posts.Field("author", registry.Association("user"), registry.Only("id", "name")))
	check(posts.Field("permission", registry.Private(), registry.Type("boolean"),
		registry.Resolver(registry.Resolve(func(_ context.Context, p *Post, in registry.Input) (any, error) {
			if p.Status == "published" {
				return true, nil
			}
			v := viewerOf(in.Context)
			return v != nil && (v.Admin || v.UserID == p.UserID), nil
		}))))
	check(posts.Field("permission", registry.InNamespace(Admin), registry.Private(), registry.Type("boolean"),
		registry.Getter(func(*Post) any { return true })))

	comments := reg.Define(&Comment{}, "Comment")
	check(comments.Fields("id", "body", "post", "user", "stars"))
	check(comments.Field("created_at", registry.Orderable()))
	check(comments.Field("star_count", registry.CountOf("stars")))
	comments.DefinePreloader("my_stars", myStars(loader))
	check(comments.Field("my_stars",
		registry.PreloadNamed("my_stars"),
		registry.Type([]any{&Star{}}),
		registry.Resolver(registry.Resolve(func(_ context.Context, c *Comment, in registry.Input) (any, error) {
			byComment, _ := in.Preloaded[0].(map[uint][]*Star)
			return reg.Wrap(byComment[c.ID]), nil
		})),
	))

	stars := reg.Define(&Star{}, "Star")
	check(stars.Fields("id", "kind", "user", "comment"))

	query := reg.Define(&Query{}, "Query")
	check(query.Field("users",
		registry.Type([]any{&User{}}),
		registry.Resolver(func(ctx context.Context, _ any, _ registry.Input) (any, error) {
			us, err := catalog.Users(ctx)
			if err != nil {
				return nil, err
			}
			return reg.Wrap(us), nil
		}, registry.Signature{}),
	))
	check(query.Field("user",
		registry.Type([]any{&User{}, nil}),
		registry.Arguments(registry.Argument{Name: "id", Type: registry.Scalar{Kind: registry.ScalarInt}, Required: true}),
		registry.Resolver(func(ctx context.Context, _ any, in registry.Input) (any, error) {
			params, _ := in.Params.(map[string]any)
			id, ok := storage.Key(params["id"]).(int64)
			if !ok || id <= 0 {
				return nil, registry.InvalidQuery("user id must be a positive integer, got %v", params["id"])
			}
			u, err := catalog.User(ctx, uint(id))
			if err != nil || u == nil {
				return nil, err
			}
			return reg.Wrap(u), nil
		}, registry.Signature{Params: registry.ParamsNamed, Required: []string{"id"}}),
	))
	check(query.Field("posts",
		registry.Type([]any{&Post{}}),
		registry.Resolver(func(ctx context.Context, _ any, _ registry.Input) (any, error) {
			ps, err := catalog.Posts(ctx)
			if err != nil {
				return nil, err
			}
			return reg.Wrap(ps), nil
		}, registry.Signature{}),
	))
	check(query.Field("viewer",
		registry.Type([]any{&User{}, nil}),
		registry.Resolver(func(ctx context.Context, _ any, in registry.Input) (any, error) {
			v := viewerOf(in.Context)
			if v == nil {
				return nil, nil
			}
			u, err := catalog.User(ctx, v.UserID)
			if err != nil || u == nil {
				return nil, err
			}
			return reg.Wrap(u), nil
		}, registry.Signature{Context: true}),
	))

	return query, errors.Join(errs...)
}

// myStars loads, per comment, the stars the viewer gave it.
func myStars(loader storage.AssociationLoader) *registry.Preloader {
	return registry.NewPreloader(func(ctx context.Context, b registry.Batch) (any, error) {
		out := map[uint][]*Star{}
		v := viewerOf(b.Context)
		if v == nil {
			return out, nil
		}
		cs := registry.Models[*Comment](b.Models)
		ids := make([]any, len(cs))
		for i, c := range cs {
			ids[i] = c.ID
		}
		rows, err := loader.PreloadAssociation(ctx, commentType, ids, "stars", storage.PreloadOptions{})
		if err != nil {
			return nil, err
		}
		for _, c := range cs {
			for _, r := range rows[storage.Key(c.ID)] {
				if s, ok := r.(*Star); ok && s.UserID == v.UserID {
					out[c.ID] = append(out[c.ID], s)
				}
			}
		}
		return out, nil
	}, registry.Signature{Context: true})
}
