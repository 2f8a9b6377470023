package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestFutureThenOrdering(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	var order []string

	first := Go(ctx, func(ctx context.Context) (int, error) {
		<-release
		order = append(order, "first")
		return 21, nil
	})
	second := Then(ctx, first, func(ctx context.Context, v int) (int, error) {
		order = append(order, "second")
		return v * 2, nil
	})

	select {
	case <-second.Done():
		t.Fatal("continuation resolved before its predecessor")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	v, err := second.Await(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 42)
	test.That(t, order, test.ShouldResemble, []string{"first", "second"})
}

func TestFutureThenSkipsOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("decode failed")
	ran := false

	next := Then(ctx, Resolved(0, boom), func(ctx context.Context, v int) (string, error) {
		ran = true
		return "unreachable", nil
	})
	_, err := next.Await(ctx)
	test.That(t, err, test.ShouldEqual, boom)
	test.That(t, ran, test.ShouldBeFalse)
}

func TestFuturePanic(t *testing.T) {
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		panic("bad pixel")
	})
	_, err := f.Await(context.Background())
	test.That(t, err, test.ShouldEqual, ErrStagePanicked)
}

func TestFutureAwaitCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	f := Go(context.Background(), func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}
