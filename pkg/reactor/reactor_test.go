package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flag struct{ ready bool }

func (f *flag) Ready() bool { return f.ready }

func TestSelectLowestIndexWins(t *testing.T) {
	r := New(time.Millisecond)
	a := &flag{ready: false}
	b := &flag{ready: true}
	c := &flag{ready: true}
	r.Register(a)
	r.Register(b)
	r.Register(c)

	idx, ok := r.Select()
	require.True(t, ok)
	require.Equal(t, 1, idx)
}

func TestSelectNoneReady(t *testing.T) {
	r := New(time.Millisecond)
	r.Register(&flag{ready: false})
	_, ok := r.Select()
	require.False(t, ok)
}

func TestWaitForReturnsOnceReady(t *testing.T) {
	r := New(2 * time.Millisecond)
	target := &flag{}
	go func() {
		time.Sleep(10 * time.Millisecond)
		target.ready = true
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.WaitFor(ctx, target))
}

func TestWaitForRespectsContextCancellation(t *testing.T) {
	r := New(time.Millisecond)
	target := &flag{ready: false}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := r.WaitFor(ctx, target)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleepRespectsContextCancellation(t *testing.T) {
	r := New(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := r.Sleep(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBlockUntilReturnsAllReady(t *testing.T) {
	r := New(time.Millisecond)
	r.Register(&flag{ready: true})
	r.Register(&flag{ready: false})
	r.Register(&flag{ready: true})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ready, err := r.BlockUntil(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, ready)
}
