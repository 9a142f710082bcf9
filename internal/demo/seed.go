package demo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/hanpama/fieldgraph/internal/storage/memstore"
)

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return epoch.Add(time.Duration(hours) * time.Hour) }

// Fixtures returns a fresh copy of the seed records, parents first.
func Fixtures() []any {
	return []any{
		&User{ID: 1, Name: "ann", Email: "ann@example.com", Role: "admin", CreatedAt: at(0)},
		&User{ID: 2, Name: "bob", Email: "bob@example.com", Role: "member", CreatedAt: at(1)},
		&User{ID: 3, Name: "cat", Email: "cat@example.com", Role: "member", CreatedAt: at(2)},

		&Post{ID: 1, UserID: 1, Title: "Hello", Body: "First post.", Status: "published", CreatedAt: at(3)},
		&Post{ID: 2, UserID: 1, Title: "Draft notes", Body: "Not yet.", Status: "draft", CreatedAt: at(4)},
		&Post{ID: 3, UserID: 2, Title: "Go tips", Body: "Accept interfaces.", Status: "published", CreatedAt: at(5)},

		&Comment{ID: 1, PostID: 1, UserID: 2, Body: "nice", CreatedAt: at(6)},
		&Comment{ID: 2, PostID: 1, UserID: 3, Body: "+1", CreatedAt: at(7)},
		&Comment{ID: 3, PostID: 3, UserID: 1, Body: "thanks", CreatedAt: at(8)},
		&Comment{ID: 4, PostID: 2, UserID: 1, Body: "expand this", CreatedAt: at(9)},

		&Star{ID: 1, CommentID: 1, UserID: 1, Kind: "like"},
		&Star{ID: 2, CommentID: 1, UserID: 3, Kind: "love"},
		&Star{ID: 3, CommentID: 3, UserID: 2, Kind: "like"},
	}
}

// SeedMemory inserts the fixtures into s.
func SeedMemory(s *memstore.Store) {
	s.Insert(Fixtures()...)
}

// SeedDB inserts the fixtures through gorm unless users already exist.
func SeedDB(ctx context.Context, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Model(&User{}).Count(&n).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range Fixtures() {
			if err := tx.Create(r).Error; err != nil {
				return fmt.Errorf("seed %T: %w", r, err)
			}
		}
		return nil
	})
}
