package eventbus_test

import (
	"context"
	"errors"
	"testing"

	infraeventbus "github.com/payvault/payvault/infra/eventbus"
	"github.com/payvault/payvault/pkg/eventbus"
	"github.com/payvault/payvault/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) Type() string { return e.name }

func TestEmit_DispatchesToRegisteredHandlersInOrder(t *testing.T) {
	bus := testutils.NewTestBus()
	var seen []string
	bus.Register("a", func(_ context.Context, ev eventbus.Event) error {
		seen = append(seen, "h1:"+ev.Type())
		return nil
	})
	bus.Register("a", func(_ context.Context, ev eventbus.Event) error {
		seen = append(seen, "h2:"+ev.Type())
		return nil
	})
	bus.Register("b", func(_ context.Context, ev eventbus.Event) error {
		seen = append(seen, "h3:"+ev.Type())
		return nil
	})

	require.NoError(t, bus.Emit(context.Background(), testEvent{"a"}))
	assert.Equal(t, []string{"h1:a", "h2:a"}, seen)
}

func TestEmit_HandlerErrorsAreSwallowed(t *testing.T) {
	bus := testutils.NewTestBus()
	calls := 0
	bus.Register("a", func(context.Context, eventbus.Event) error {
		return errors.New("first handler failed")
	})
	bus.Register("a", func(context.Context, eventbus.Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.Emit(context.Background(), testEvent{"a"}))
	assert.Equal(t, 1, calls, "later handlers still run after a failure")
}

func TestEmit_NoHandlersIsFine(t *testing.T) {
	bus := testutils.NewTestBus()
	require.NoError(t, bus.Emit(context.Background(), testEvent{"unrouted"}))
}

func TestPublished_CapturesEmissionOrder(t *testing.T) {
	bus := testutils.NewTestBus()
	ctx := context.Background()
	require.NoError(t, bus.Emit(ctx, testEvent{"first"}))
	require.NoError(t, bus.Emit(ctx, testEvent{"second"}))

	published := bus.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "first", published[0].Type())
	assert.Equal(t, "second", published[1].Type())

	bus.ClearPublished()
	assert.Empty(t, bus.Published())
}

var _ eventbus.Bus = (*infraeventbus.MemoryEventBus)(nil)
