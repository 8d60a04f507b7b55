package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHarvester(t *testing.T, list ListControl, observer func(from, to State)) *Harvester {
	t.Helper()
	return New(connectorFor(list), Options{Logger: zaptest.NewLogger(t), Observer: observer})
}

func TestHarvestStableInput(t *testing.T) {
	list := staticList(
		item("a", "Alice", "hi", "how are you"),
		item("d", "Monday"),
		item("b", "Bob", "fine"),
	)

	res, err := newTestHarvester(t, list, nil).Harvest(context.Background(), fastRequest(50, 30))
	require.NoError(t, err)

	want := []MessageRecord{
		{Sender: "Alice", Content: "hi", Order: 0},
		{Sender: "Alice", Content: "how are you", Order: 1},
		{Sender: "Bob", Content: "fine", Order: 2},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StopNoProgress, res.Stop)
	assert.Equal(t, 1+DefaultNoProgressLimit, res.Passes)
	assert.Equal(t, 4, list.snapshots)
	assert.Equal(t, 4, res.Skipped)
}

func TestHarvestDedupAcrossPasses(t *testing.T) {
	a := item("a", "Alice", "one")
	b := item("b", "Bob", "two", "three")
	c := item("c", "Alice", "four")
	d := item("d", "Carol", "five")
	list := scriptedList(
		[]Item{c, d},
		[]Item{b, c, d},
		[]Item{a, b, c},
	)

	res, err := newTestHarvester(t, list, nil).Harvest(context.Background(), fastRequest(100, 30))
	require.NoError(t, err)

	want := []MessageRecord{
		{Sender: "Alice", Content: "four", Order: 0},
		{Sender: "Carol", Content: "five", Order: 1},
		{Sender: "Bob", Content: "two", Order: 2},
		{Sender: "Bob", Content: "three", Order: 3},
		{Sender: "Alice", Content: "one", Order: 4},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(res.Records); i++ {
		assert.Less(t, res.Records[i-1].Order, res.Records[i].Order)
	}
}

func TestHarvestCapKeepsEarliestCaptured(t *testing.T) {
	list := scriptedList(
		[]Item{item("x", "Xi", "newest-1", "newest-2"), item("y", "Yu", "newest-3")},
		[]Item{item("w", "Wu", "older")},
	)

	res, err := newTestHarvester(t, list, nil).Harvest(context.Background(), fastRequest(2, 30))
	require.NoError(t, err)

	assert.Equal(t, StopTargetReached, res.Stop)
	assert.Equal(t, 1, res.Passes)
	assert.Equal(t, 3, res.Captured)
	want := []MessageRecord{
		{Sender: "Xi", Content: "newest-1", Order: 0},
		{Sender: "Xi", Content: "newest-2", Order: 1},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestHarvestNeverExceedsTarget(t *testing.T) {
	for target := 1; target <= 6; target++ {
		t.Run(fmt.Sprint(target), func(t *testing.T) {
			list := &fakeList{snapshot: func(n int) ([]Item, error) {
				return []Item{item(fmt.Sprint(n), "S", "m1", "m2", "m3")}, nil
			}}
			res, err := New(connectorFor(list), Options{}).Harvest(context.Background(), fastRequest(target, 30))
			require.NoError(t, err)
			assert.LessOrEqual(t, len(res.Records), target)
			assert.Len(t, res.Records, target)
		})
	}
}

func TestHarvestBudgetExhausted(t *testing.T) {
	list := &fakeList{snapshot: func(n int) ([]Item, error) {
		return []Item{item(fmt.Sprint(n), "Dana", fmt.Sprintf("msg %d", n))}, nil
	}}

	res, err := newTestHarvester(t, list, nil).Harvest(context.Background(), fastRequest(100, 5))
	require.NoError(t, err)
	assert.Equal(t, StopBudgetExhausted, res.Stop)
	assert.Equal(t, 5, res.Passes)
	assert.Len(t, list.scrolls, 5)
	assert.Len(t, res.Records, 5)
}

func TestHarvestStallTerminatesEarly(t *testing.T) {
	var states []State
	list := staticList(item("a", "Alice", "hi"))
	h := newTestHarvester(t, list, func(_, to State) { states = append(states, to) })

	res, err := h.Harvest(context.Background(), fastRequest(10, 30))
	require.NoError(t, err)

	assert.Equal(t, StopNoProgress, res.Stop)
	assert.Equal(t, 4, res.Passes, "must stop once three consecutive passes add nothing")
	require.NotEmpty(t, states)
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Equal(t, []State{StateScrolling, StateWalking, StateAssembling}, states[:3])
}

func TestHarvestNoProgressCounterResets(t *testing.T) {
	empty := []Item{}
	list := scriptedList(
		empty,
		empty,
		[]Item{item("a", "Alice", "late")},
		empty,
		empty,
		empty,
	)

	res, err := newTestHarvester(t, list, nil).Harvest(context.Background(), fastRequest(10, 30))
	require.NoError(t, err)
	assert.Equal(t, StopNoProgress, res.Stop)
	assert.Equal(t, 6, res.Passes)
	assert.Len(t, res.Records, 1)
}

func TestHarvestConnectionLost(t *testing.T) {
	list := staticList(item("a", "Alice", "hi"))
	list.scrollErr = func(n int) error {
		if n == 2 {
			return fmt.Errorf("wheel: %w", ErrConnectionLost)
		}
		return nil
	}
	var last State
	h := newTestHarvester(t, list, func(_, to State) { last = to })

	res, err := h.Harvest(context.Background(), fastRequest(10, 30))
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrConnectionLost)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, 2, f.Pass)
	assert.Equal(t, StateScrolling, f.State)
	assert.NotEmpty(t, f.SessionID)
	assert.Equal(t, StateFailed, last)
}

func TestHarvestConnectionLostDuringSnapshot(t *testing.T) {
	list := &fakeList{snapshot: func(n int) ([]Item, error) {
		if n == 2 {
			return nil, ErrConnectionLost
		}
		return []Item{item(fmt.Sprint(n), "Eve", "x")}, nil
	}}

	res, err := New(connectorFor(list), Options{}).Harvest(context.Background(), fastRequest(10, 30))
	assert.Nil(t, res)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StateWalking, f.State)
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestHarvestTransientSnapshotError(t *testing.T) {
	list := &fakeList{snapshot: func(n int) ([]Item, error) {
		if n == 1 {
			return nil, errors.New("tree changed while reading")
		}
		return []Item{item("a", "Alice", "hi")}, nil
	}}

	res, err := New(connectorFor(list), Options{NoProgressLimit: 2}).Harvest(context.Background(), fastRequest(10, 30))
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 4, res.Passes)
}

func TestHarvestLocateFailure(t *testing.T) {
	conn := ConnectorFunc(func(context.Context) (ListControl, error) { return nil, ErrListNotFound })
	res, err := New(conn, Options{}).Harvest(context.Background(), fastRequest(10, 30))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrListNotFound)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StateIdle, f.State)
	assert.Zero(t, f.Pass)
}

func TestHarvestCancellation(t *testing.T) {
	t.Run("before first pass", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		list := staticList(item("a", "Alice", "hi"))
		res, err := New(connectorFor(list), Options{}).Harvest(ctx, fastRequest(10, 30))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, list.scrolls)
	})

	t.Run("during settle pause", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		req := fastRequest(10, 30)
		req.SettlePause = time.Hour
		res, err := New(connectorFor(staticList()), Options{}).Harvest(ctx, req)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHarvestCompositeIdentityFallback(t *testing.T) {
	// Without runtime ids, two bubbles with identical text collapse into one.
	dup := fakeItem{role: "listitem", name: "ok", leaves: []string{"Bob", "ok"}}
	list := staticList(dup, dup, fakeItem{role: "listitem", name: "later", leaves: []string{"Bob", "later"}})

	res, err := New(connectorFor(list), Options{}).Harvest(context.Background(), fastRequest(10, 30))
	require.NoError(t, err)
	assert.Equal(t, "Bob: ok\nBob: later", Transcript(res.Records))
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, DefaultRequest().Validate())

	bad := []Request{
		{TargetCount: 0, MaxPasses: 1},
		{TargetCount: 1, MaxPasses: 0},
		{TargetCount: 1, MaxPasses: 1, SettlePause: -time.Second},
	}
	for _, r := range bad {
		_, err := New(connectorFor(staticList()), Options{}).Harvest(context.Background(), r)
		assert.Error(t, err)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "assembling", StateAssembling.String())
	assert.Equal(t, "state(42)", State(42).String())
}
