// Package demo is a small blog domain used by the command line tool and the
// integration tests. Its models work with both storage backends: gorm reads
// the struct tags and relations directly, and NewMemStore declares the same
// relations on an in-memory store.
package demo

import (
	"time"

	"gorm.io/gorm"

	"github.com/hanpama/fieldgraph/internal/storage/memstore"
)

type User struct {
	ID        uint
	Name      string
	Email     string
	Role      string `enum:"admin,member"`
	CreatedAt time.Time
	Posts     []*Post
	Stars     []*Star
}

type Post struct {
	ID        uint
	UserID    uint
	Title     string
	Body      string
	Status    string `enum:"draft,published"`
	CreatedAt time.Time
	User      *User
	Comments  []*Comment
}

type Comment struct {
	ID        uint
	PostID    uint
	UserID    uint
	Body      string
	CreatedAt time.Time
	Post      *Post
	User      *User
	Stars     []*Star
}

type Star struct {
	ID        uint
	CommentID uint
	UserID    uint
	Kind      string `enum:"like,love"`
	User      *User
	Comment   *Comment
}

// Query is the root object every request starts from.
type Query struct{}

// Migrate creates or updates the demo tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Post{}, &Comment{}, &Star{})
}

// NewMemStore returns an in-memory store with the demo relations declared.
func NewMemStore() *memstore.Store {
	s := memstore.New()
	s.Register(&User{}).
		HasMany("posts", &Post{}, "user_id").
		HasMany("stars", &Star{}, "user_id")
	s.Register(&Post{}).
		BelongsTo("user", &User{}, "user_id").
		HasMany("comments", &Comment{}, "post_id")
	s.Register(&Comment{}).
		BelongsTo("post", &Post{}, "post_id").
		BelongsTo("user", &User{}, "user_id").
		HasMany("stars", &Star{}, "comment_id")
	s.Register(&Star{}).
		BelongsTo("user", &User{}, "user_id").
		BelongsTo("comment", &Comment{}, "comment_id")
	return s
}
