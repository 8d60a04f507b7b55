package harvest

import (
	"context"
	"strings"
	"time"
)

type fakeLeaf struct {
	text string
	err  error
}

func (l fakeLeaf) Text(context.Context) (string, error) { return l.text, l.err }

type fakeItem struct {
	id      string
	name    string
	role    string
	leaves  []string
	leafErr error
	nameErr error
}

func item(id string, leaves ...string) fakeItem {
	return fakeItem{id: id, name: strings.Join(leaves, " "), role: "listitem", leaves: leaves}
}

func (it fakeItem) Text(context.Context) (string, error) { return it.name, it.nameErr }
func (it fakeItem) Role() string                         { return it.role }
func (it fakeItem) RuntimeID() (string, bool)            { return it.id, it.id != "" }

func (it fakeItem) TextLeaves(context.Context) ([]TextBearingElement, error) {
	if it.leafErr != nil {
		return nil, it.leafErr
	}
	out := make([]TextBearingElement, 0, len(it.leaves))
	for _, l := range it.leaves {
		out = append(out, fakeLeaf{text: l})
	}
	return out, nil
}

type fakeButton struct {
	clicks int
	err    error
}

func (b *fakeButton) Click(context.Context) error {
	b.clicks++
	return b.err
}

// fakeList serves scripted snapshots. snapshot receives the 1-based call number.
type fakeList struct {
	snapshot  func(n int) ([]Item, error)
	scrollErr func(n int) error
	button    *fakeButton
	probeErr  error

	scrolls   []int
	snapshots int
	probes    int
	timeouts  []time.Duration
}

func (l *fakeList) Scroll(_ context.Context, distance int) error {
	l.scrolls = append(l.scrolls, distance)
	if l.scrollErr != nil {
		return l.scrollErr(len(l.scrolls))
	}
	return nil
}

func (l *fakeList) Items(context.Context) ([]Item, error) {
	l.snapshots++
	if l.snapshot == nil {
		return nil, nil
	}
	return l.snapshot(l.snapshots)
}

func (l *fakeList) ProbeLoadMore(_ context.Context, timeout time.Duration) (Clickable, error) {
	l.probes++
	l.timeouts = append(l.timeouts, timeout)
	if l.probeErr != nil {
		return nil, l.probeErr
	}
	if l.button == nil {
		return nil, ErrAffordanceNotFound
	}
	return l.button, nil
}

// staticList returns the same items on every snapshot.
func staticList(items ...Item) *fakeList {
	return &fakeList{snapshot: func(int) ([]Item, error) { return items, nil }}
}

// scriptedList returns passes[n-1], repeating the last entry once exhausted.
func scriptedList(passes ...[]Item) *fakeList {
	return &fakeList{snapshot: func(n int) ([]Item, error) {
		if n > len(passes) {
			n = len(passes)
		}
		return passes[n-1], nil
	}}
}

func connectorFor(l ListControl) Connector {
	return ConnectorFunc(func(context.Context) (ListControl, error) { return l, nil })
}

func fastRequest(target, passes int) Request {
	return Request{TargetCount: target, WheelDistance: DefaultWheelDistance, MaxPasses: passes}
}
