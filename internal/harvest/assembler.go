package harvest

import "strings"

// RecordAssembler turns one handle's leaves into records. The first leaf is the sender;
// every following leaf is a separate message bubble from that sender.
type RecordAssembler struct{}

// Assemble appends one record per content leaf to dst, numbering them from next.
// It returns the extended slice and the next unused order value. Blank content leaves
// produce nothing.
func (RecordAssembler) Assemble(dst []MessageRecord, h ElementHandle, next int) ([]MessageRecord, int) {
	if len(h.Leaves) < 2 {
		return dst, next
	}
	sender := strings.TrimSpace(h.Leaves[0])
	if sender == "" {
		return dst, next
	}
	for _, leaf := range h.Leaves[1:] {
		content := strings.TrimSpace(leaf)
		if content == "" {
			continue
		}
		dst = append(dst, MessageRecord{Sender: sender, Content: content, Order: next})
		next++
	}
	return dst, next
}
