package demo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/hanpama/fieldgraph/internal/storage/memstore"
)

// Catalog fetches the top-level collections the Query root exposes.
type Catalog interface {
	Users(ctx context.Context) ([]*User, error)
	// User returns nil when no user has the id.
	User(ctx context.Context, id uint) (*User, error)
	Posts(ctx context.Context) ([]*Post, error)
}

// MemCatalog reads from an in-memory store.
type MemCatalog struct{ Store *memstore.Store }

func (c MemCatalog) Users(context.Context) ([]*User, error) {
	return all[*User](c.Store, &User{}), nil
}

func (c MemCatalog) User(_ context.Context, id uint) (*User, error) {
	for _, u := range all[*User](c.Store, &User{}) {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (c MemCatalog) Posts(context.Context) ([]*Post, error) {
	return all[*Post](c.Store, &Post{}), nil
}

func all[T any](s *memstore.Store, sample any) []T {
	rows := s.All(sample)
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.(T))
	}
	return out
}

// GormCatalog reads through gorm.
type GormCatalog struct{ DB *gorm.DB }

func (c GormCatalog) Users(ctx context.Context) ([]*User, error) {
	var users []*User
	if err := c.DB.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (c GormCatalog) User(ctx context.Context, id uint) (*User, error) {
	var u User
	err := c.DB.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c GormCatalog) Posts(ctx context.Context) ([]*Post, error) {
	var posts []*Post
	if err := c.DB.WithContext(ctx).Order("id").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}
