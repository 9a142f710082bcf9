package persisted

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const text = "{ name }"

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(""))
	assert.Len(t, Hash(text), 64)
}

func testStore(t *testing.T, s Store) {
	ctx := context.Background()
	hash := Hash(text)

	_, err := Resolve(ctx, s, "", hash)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(ctx, s, text, Hash("{ other }"))
	assert.ErrorIs(t, err, ErrHashMismatch)

	q, err := Resolve(ctx, s, text, hash)
	require.NoError(t, err)
	assert.Equal(t, text, q)

	q, err = Resolve(ctx, s, "", hash)
	require.NoError(t, err)
	assert.Equal(t, text, q)

	q, err = Resolve(ctx, s, "", strings.ToUpper(hash))
	require.NoError(t, err)
	assert.Equal(t, text, q)

	q, err = Resolve(ctx, s, "{ plain }", "")
	require.NoError(t, err)
	assert.Equal(t, "{ plain }", q)
}

func TestMemory(t *testing.T) {
	testStore(t, NewMemory())
}

func setupTestRedis(t *testing.T, cfg RedisConfig) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisWithClient(client, cfg)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedis(t *testing.T) {
	s, mr := setupTestRedis(t, DefaultRedisConfig())
	testStore(t, s)
	assert.True(t, mr.Exists("fieldgraph:pq:"+Hash(text)))
}

func TestRedisTTL(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.TTL = time.Minute
	s, mr := setupTestRedis(t, cfg)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Hash(text), text))
	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, Hash(text))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()
	s, err := NewRedis(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	cfg.Addr = "localhost:1"
	_, err = NewRedis(context.Background(), cfg)
	assert.Error(t, err)
}
