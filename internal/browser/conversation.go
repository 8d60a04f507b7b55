package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"chatharvest/internal/harvest"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const (
	roleList       = "list"
	roleListItem   = "listitem"
	roleStaticText = "StaticText"
	roleButton     = "button"

	probeInterval = 50 * time.Millisecond
)

// Conversation locates the chat page's message list. It implements harvest.Connector.
type Conversation struct {
	mgr        *SessionManager
	listName   string
	loadMoreRe *regexp.Regexp
	wheelStep  int
	logger     *zap.Logger
}

var _ harvest.Connector = (*Conversation)(nil)

// NewConversation creates a connector bound to mgr's configuration.
func NewConversation(mgr *SessionManager) (*Conversation, error) {
	var loadMoreRe *regexp.Regexp
	if p := mgr.cfg.LoadMorePattern; p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("load_more_pattern: %w", err)
		}
		loadMoreRe = re
	}
	return &Conversation{
		mgr:        mgr,
		listName:   mgr.cfg.GetListName(),
		loadMoreRe: loadMoreRe,
		wheelStep:  mgr.cfg.GetWheelStepPixels(),
		logger:     mgr.logger,
	}, nil
}

// LocateConversationList brings the chat page to the front and finds the message list
// by accessible name.
func (c *Conversation) LocateConversationList(ctx context.Context) (harvest.ListControl, error) {
	page, err := c.mgr.FindPage(ctx)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return nil, fmt.Errorf("%w: %v", harvest.ErrListNotFound, err)
		}
		return nil, err
	}
	if _, err := page.Activate(); err != nil {
		c.logger.Debug("activate page failed", zap.Error(err))
	}
	if err := (proto.DOMEnable{}).Call(page); err != nil {
		return nil, c.classify(page, fmt.Errorf("enable DOM domain: %w", err))
	}
	if err := (proto.AccessibilityEnable{}).Call(page); err != nil {
		return nil, c.classify(page, fmt.Errorf("enable accessibility domain: %w", err))
	}

	l := &axList{conv: c, page: page}
	if err := l.resolve(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// classify wraps err with harvest.ErrConnectionLost when the browser or page is gone.
func (c *Conversation) classify(page *rod.Page, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !c.mgr.alive(page.TargetID) {
		return fmt.Errorf("%w: %v", harvest.ErrConnectionLost, err)
	}
	return err
}

// axList is the message list as seen through the accessibility tree.
type axList struct {
	conv    *Conversation
	page    *rod.Page
	backend proto.DOMBackendNodeID
}

var _ harvest.ListControl = (*axList)(nil)

func (l *axList) resolve(ctx context.Context) error {
	page := l.page.Context(ctx)
	root, err := documentRoot(page)
	if err != nil {
		return l.conv.classify(l.page, err)
	}
	res, err := proto.AccessibilityQueryAXTree{
		BackendNodeID:  root,
		AccessibleName: l.conv.listName,
		Role:           roleList,
	}.Call(page)
	if err != nil {
		return l.conv.classify(l.page, fmt.Errorf("query list: %w", err))
	}
	for _, n := range res.Nodes {
		if !n.Ignored && n.BackendDOMNodeID != 0 {
			l.backend = n.BackendDOMNodeID
			return nil
		}
	}
	return fmt.Errorf("%w: no list named %q", harvest.ErrListNotFound, l.conv.listName)
}

// Scroll dispatches a mouse wheel event over the centre of the list. One unit of
// distance is one wheel notch; positive distances scroll toward older messages.
func (l *axList) Scroll(ctx context.Context, distance int) error {
	page := l.page.Context(ctx)
	box, err := proto.DOMGetBoxModel{BackendNodeID: l.backend}.Call(page)
	if err != nil {
		if rerr := l.resolve(ctx); rerr != nil {
			return rerr
		}
		if box, err = (proto.DOMGetBoxModel{BackendNodeID: l.backend}).Call(page); err != nil {
			return l.conv.classify(l.page, fmt.Errorf("list box model: %w", err))
		}
	}
	x, y := quadCenter(box.Model.Content)
	err = proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      x,
		Y:      y,
		DeltaY: -float64(distance * l.conv.wheelStep),
	}.Call(page)
	return l.conv.classify(l.page, err)
}

// Items returns the list items currently in the accessibility tree, in document order.
func (l *axList) Items(ctx context.Context) ([]harvest.Item, error) {
	nodes, err := l.query(ctx, l.backend, roleListItem)
	if err != nil {
		if rerr := l.resolve(ctx); rerr != nil {
			return nil, rerr
		}
		if nodes, err = l.query(ctx, l.backend, roleListItem); err != nil {
			return nil, l.conv.classify(l.page, err)
		}
	}
	items := make([]harvest.Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, &axItem{list: l, node: n})
	}
	return items, nil
}

// ProbeLoadMore polls the page for a button matching the load-more pattern until
// timeout elapses.
func (l *axList) ProbeLoadMore(ctx context.Context, timeout time.Duration) (harvest.Clickable, error) {
	if l.conv.loadMoreRe == nil {
		return nil, harvest.ErrAffordanceNotFound
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		if btn, err := l.findLoadMore(pctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if pctx.Err() == nil {
				return nil, l.conv.classify(l.page, err)
			}
		} else if btn != nil {
			return btn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-pctx.Done():
			return nil, harvest.ErrAffordanceNotFound
		case <-ticker.C:
		}
	}
}

func (l *axList) findLoadMore(ctx context.Context) (*axButton, error) {
	root, err := documentRoot(l.page.Context(ctx))
	if err != nil {
		return nil, err
	}
	nodes, err := l.query(ctx, root, roleButton)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.BackendDOMNodeID != 0 && l.conv.loadMoreRe.MatchString(axString(n.Name)) {
			return &axButton{list: l, backend: n.BackendDOMNodeID}, nil
		}
	}
	return nil, nil
}

func (l *axList) query(ctx context.Context, under proto.DOMBackendNodeID, role string) ([]*proto.AccessibilityAXNode, error) {
	res, err := proto.AccessibilityQueryAXTree{BackendNodeID: under, Role: role}.Call(l.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", role, err)
	}
	out := res.Nodes[:0]
	for _, n := range res.Nodes {
		if !n.Ignored {
			out = append(out, n)
		}
	}
	return out, nil
}

// axItem is one listitem node.
type axItem struct {
	list *axList
	node *proto.AccessibilityAXNode
}

func (it *axItem) Text(context.Context) (string, error) { return axString(it.node.Name), nil }

func (it *axItem) Role() string { return axString(it.node.Role) }

// RuntimeID is the backend DOM node id, which stays fixed until the node is destroyed.
func (it *axItem) RuntimeID() (string, bool) {
	if it.node.BackendDOMNodeID == 0 {
		return "", false
	}
	return strconv.Itoa(int(it.node.BackendDOMNodeID)), true
}

func (it *axItem) TextLeaves(ctx context.Context) ([]harvest.TextBearingElement, error) {
	if it.node.BackendDOMNodeID == 0 {
		return nil, fmt.Errorf("%w: listitem without DOM node", harvest.ErrMalformedElement)
	}
	nodes, err := it.list.query(ctx, it.node.BackendDOMNodeID, roleStaticText)
	if err != nil {
		return nil, it.list.conv.classify(it.list.page, err)
	}
	leaves := make([]harvest.TextBearingElement, 0, len(nodes))
	for _, n := range nodes {
		leaves = append(leaves, axText(axString(n.Name)))
	}
	return leaves, nil
}

type axText string

func (t axText) Text(context.Context) (string, error) { return string(t), nil }

type axButton struct {
	list    *axList
	backend proto.DOMBackendNodeID
}

func (b *axButton) Click(ctx context.Context) error {
	el, err := b.list.page.Context(ctx).ElementFromNode(&proto.DOMNode{BackendNodeID: b.backend})
	if err != nil {
		return b.list.conv.classify(b.list.page, fmt.Errorf("resolve load-more button: %w", err))
	}
	return b.list.conv.classify(b.list.page, el.Click(proto.InputMouseButtonLeft, 1))
}

func documentRoot(page *rod.Page) (proto.DOMBackendNodeID, error) {
	doc, err := proto.DOMGetDocument{}.Call(page)
	if err != nil {
		return 0, fmt.Errorf("get document: %w", err)
	}
	if doc.Root == nil {
		return 0, errors.New("document has no root")
	}
	return doc.Root.BackendNodeID, nil
}

func axString(v *proto.AccessibilityAXValue) string {
	if v == nil || v.Value.Nil() {
		return ""
	}
	return v.Value.Str()
}

// quadCenter returns the centre of a DOM quad (x1,y1 … x4,y4).
func quadCenter(q proto.DOMQuad) (float64, float64) {
	if len(q) < 8 {
		return 0, 0
	}
	var x, y float64
	for i := 0; i < 8; i += 2 {
		x += q[i]
		y += q[i+1]
	}
	return x / 4, y / 4
}
