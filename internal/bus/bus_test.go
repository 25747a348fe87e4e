package bus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/input-output-hk/acropolis/internal/bus"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishSubscribeOrdering(t *testing.T) {
	b := bus.New(nil)
	ch, unsub := b.Subscribe("block.proposed")
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish("block.proposed", i)
	}

	for i := 0; i < 5; i++ {
		select {
		case v := <-ch:
			require.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestPublishFanOutPreservesSubscriptionOrder(t *testing.T) {
	b := bus.New(nil)
	var order []int
	ch1, unsub1 := b.Subscribe("epoch.boundary")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("epoch.boundary")
	defer unsub2()

	b.Publish("epoch.boundary", "go")

	select {
	case <-ch1:
		order = append(order, 1)
	case <-time.After(time.Second):
		t.Fatal("ch1 never received")
	}
	select {
	case <-ch2:
		order = append(order, 2)
	case <-time.After(time.Second):
		t.Fatal("ch2 never received")
	}
	require.Equal(t, []int{1, 2}, order)
}

func TestRequestResponse(t *testing.T) {
	b := bus.New(nil)
	err := b.RegisterHandler("query.utxos", func(ctx context.Context, payload any) (any, error) {
		return payload.(int) * 2, nil
	})
	require.NoError(t, err)

	resp, err := b.Request(context.Background(), "query.utxos", 21)
	require.NoError(t, err)
	require.Equal(t, 42, resp)
}

func TestRequestUnregisteredTopicErrors(t *testing.T) {
	b := bus.New(nil)
	_, err := b.Request(context.Background(), "query.nope", nil)
	require.Error(t, err)
}

func TestDuplicateHandlerRegistrationErrors(t *testing.T) {
	b := bus.New(nil)
	handler := func(ctx context.Context, payload any) (any, error) { return nil, nil }
	require.NoError(t, b.RegisterHandler("query.pools", handler))
	require.Error(t, b.RegisterHandler("query.pools", handler))
}

func TestShutdownClosesSubscriberChannels(t *testing.T) {
	b := bus.New(nil)
	ch, _ := b.Subscribe("block.proposed")
	require.NoError(t, b.Shutdown(context.Background()))

	_, open := <-ch
	require.False(t, open)
}

func TestOrderingViolationInvokesFatal(t *testing.T) {
	var gotTopic string
	var gotErr error
	b := bus.New(func(topic string, err error) {
		gotTopic = topic
		gotErr = err
	})
	b.ReportOrderingViolation("block.proposed", context.Canceled)
	require.Equal(t, "block.proposed", gotTopic)
	require.ErrorIs(t, gotErr, context.Canceled)
}
