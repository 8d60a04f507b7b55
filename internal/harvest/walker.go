package harvest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ElementWalker reads the list's materialized items into ElementHandles.
type ElementWalker struct {
	logger *zap.Logger
}

// NewElementWalker creates a walker.
func NewElementWalker(logger *zap.Logger) *ElementWalker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElementWalker{logger: logger}
}

// Snapshot returns handles for the items currently materialized, in on-screen order.
// Items without a distinguishable sender and content are skipped and counted in skipped.
func (w *ElementWalker) Snapshot(ctx context.Context, list ListControl) (handles []ElementHandle, skipped int, err error) {
	items, err := list.Items(ctx)
	if err != nil {
		return nil, 0, err
	}

	handles = make([]ElementHandle, 0, len(items))
	for i, it := range items {
		h, err := w.resolve(ctx, it)
		if err != nil {
			if fatal(ctx, err) {
				return nil, skipped, err
			}
			w.logger.Debug("skipping item", zap.Int("index", i), zap.Error(err))
			skipped++
			continue
		}
		handles = append(handles, h)
	}
	return handles, skipped, nil
}

func (w *ElementWalker) resolve(ctx context.Context, it Item) (ElementHandle, error) {
	h := ElementHandle{Role: it.Role()}
	if id, ok := it.RuntimeID(); ok {
		h.RuntimeID = id
	}
	name, err := it.Text(ctx)
	if err != nil {
		if fatal(ctx, err) {
			return h, err
		}
		w.logger.Debug("item name unreadable", zap.String("runtime_id", h.RuntimeID), zap.Error(err))
	}
	h.Name = strings.TrimSpace(name)

	leaves, err := it.TextLeaves(ctx)
	if err != nil {
		if fatal(ctx, err) {
			return h, err
		}
		return h, fmt.Errorf("%w: %v", ErrMalformedElement, err)
	}
	if len(leaves) < 2 {
		return h, fmt.Errorf("%w: %d text leaves", ErrMalformedElement, len(leaves))
	}

	h.Leaves = make([]string, 0, len(leaves))
	for _, leaf := range leaves {
		text, err := leaf.Text(ctx)
		if err != nil {
			if fatal(ctx, err) {
				return h, err
			}
			return h, fmt.Errorf("%w: unreadable leaf: %v", ErrMalformedElement, err)
		}
		h.Leaves = append(h.Leaves, strings.TrimSpace(text))
	}
	if h.Leaves[0] == "" {
		return h, fmt.Errorf("%w: empty sender", ErrMalformedElement)
	}
	return h, nil
}
