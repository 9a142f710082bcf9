package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{}

func TestPublishSubscribe(t *testing.T) {
	Use(New())
	defer Use(nil)

	var a, b []int
	unsubA := Subscribe(func(_ context.Context, e ping) { a = append(a, e.n) })
	Subscribe(func(_ context.Context, e ping) { b = append(b, e.n) })
	Subscribe(func(context.Context, pong) { t.Fatal("wrong type dispatched") })

	Publish(context.Background(), ping{1})
	unsubA()
	unsubA()
	Publish(context.Background(), ping{2})

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b, "unsubscribing one handler must keep the others")
}

func TestDisabledBus(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	unsub()
	assert.False(t, called)
}
