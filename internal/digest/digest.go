// Package digest turns a harvested transcript into a summary and reply suggestions using
// a chat-completion provider.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatharvest/internal/harvest"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReplyCount is the number of reply options requested from the model.
const ReplyCount = 3

// Assist modes.
const (
	ModeSummarize = "summarize"
	ModeReply     = "reply"
	ModeBoth      = "both"
)

var (
	// ErrEmptyTranscript is returned when there is nothing to summarize or answer.
	ErrEmptyTranscript = errors.New("empty transcript")
	// ErrNoReplies is returned when the completion contained no usable reply line.
	ErrNoReplies = errors.New("completion contained no replies")
)

// Completer sends one system+user prompt pair and returns the model's text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Request selects what Assist produces.
type Request struct {
	Mode          string
	UserID        string
	ReplyWindow   int // newest records considered for replies
	SummaryWindow int // newest records considered for the summary; 0 means all
}

// Result holds whatever the requested mode produced.
type Result struct {
	Summary string
	Replies []string
}

// Assistant produces summaries and reply suggestions.
type Assistant struct {
	completer Completer
	logger    *zap.Logger
}

// NewAssistant creates an assistant backed by c.
func NewAssistant(c Completer, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{completer: c, logger: logger}
}

// Summarize condenses the newest window records into one paragraph. window <= 0 uses
// every record.
func (a *Assistant) Summarize(ctx context.Context, records []harvest.MessageRecord, window int) (string, error) {
	recent := harvest.Tail(records, window)
	if len(recent) == 0 {
		return "", ErrEmptyTranscript
	}

	start := time.Now()
	out, err := a.completer.Complete(ctx, summarySystemPrompt, summaryPrompt(recent))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	a.logger.Debug("summary complete",
		zap.Int("records", len(recent)),
		zap.Duration("duration", time.Since(start)))
	return strings.TrimSpace(out), nil
}

// SuggestReplies proposes ReplyCount replies to the newest window records on behalf
// of userID. window <= 0 uses every record.
func (a *Assistant) SuggestReplies(ctx context.Context, records []harvest.MessageRecord, userID string, window int) ([]string, error) {
	recent := harvest.Tail(records, window)
	if len(recent) == 0 {
		return nil, ErrEmptyTranscript
	}

	start := time.Now()
	out, err := a.completer.Complete(ctx, replySystemPrompt, replyPrompt(recent, userID))
	if err != nil {
		return nil, fmt.Errorf("suggest replies: %w", err)
	}
	replies := ParseReplies(out)
	if len(replies) == 0 {
		return nil, ErrNoReplies
	}
	a.logger.Debug("replies complete",
		zap.Int("records", len(recent)),
		zap.Int("replies", len(replies)),
		zap.Duration("duration", time.Since(start)))
	return replies, nil
}

// Assist runs the mode selected by req. In ModeBoth the two completions run
// concurrently and the first failure cancels the other.
func (a *Assistant) Assist(ctx context.Context, records []harvest.MessageRecord, req Request) (*Result, error) {
	res := &Result{}
	switch req.Mode {
	case ModeSummarize:
		s, err := a.Summarize(ctx, records, req.SummaryWindow)
		if err != nil {
			return nil, err
		}
		res.Summary = s
	case ModeReply:
		r, err := a.SuggestReplies(ctx, records, req.UserID, req.ReplyWindow)
		if err != nil {
			return nil, err
		}
		res.Replies = r
	case ModeBoth, "":
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			s, err := a.Summarize(egCtx, records, req.SummaryWindow)
			res.Summary = s
			return err
		})
		eg.Go(func() error {
			r, err := a.SuggestReplies(egCtx, records, req.UserID, req.ReplyWindow)
			res.Replies = r
			return err
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown assist mode %q", req.Mode)
	}
	return res, nil
}

// ParseReplies extracts the numbered "1." "2." "3." lines from a completion. When the
// model ignored the numbering, the first non-blank lines are used instead.
func ParseReplies(raw string) []string {
	var numbered, plain []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		plain = append(plain, line)
		if isNumbered(line) {
			numbered = append(numbered, line)
		}
	}
	if len(numbered) >= ReplyCount {
		return numbered[:ReplyCount]
	}
	if len(plain) > ReplyCount {
		plain = plain[:ReplyCount]
	}
	return plain
}

func isNumbered(line string) bool {
	for i := 1; i <= ReplyCount; i++ {
		if strings.HasPrefix(line, fmt.Sprintf("%d.", i)) {
			return true
		}
	}
	return false
}
