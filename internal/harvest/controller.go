package harvest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults mirror the values the desktop assistant shipped with.
const (
	DefaultTargetCount     = 100
	DefaultWheelDistance   = 30
	DefaultSettlePause     = 200 * time.Millisecond
	DefaultMaxPasses       = 30
	DefaultNoProgressLimit = 3
)

// State is a HarvestController state.
type State int

const (
	StateIdle State = iota
	StateScrolling
	StateWalking
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "scrolling", "walking", "assembling", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// StopReason says why a successful harvest ended.
type StopReason string

const (
	StopTargetReached   StopReason = "target_reached"
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopNoProgress      StopReason = "no_progress"
)

// Request carries the inbound harvest parameters.
type Request struct {
	TargetCount   int
	WheelDistance int
	SettlePause   time.Duration
	MaxPasses     int
}

// DefaultRequest returns a request populated with the shipped defaults.
func DefaultRequest() Request {
	return Request{
		TargetCount:   DefaultTargetCount,
		WheelDistance: DefaultWheelDistance,
		SettlePause:   DefaultSettlePause,
		MaxPasses:     DefaultMaxPasses,
	}
}

// Validate checks the request bounds.
func (r Request) Validate() error {
	if r.TargetCount <= 0 {
		return fmt.Errorf("target count must be positive, got %d", r.TargetCount)
	}
	if r.SettlePause < 0 {
		return fmt.Errorf("settle pause must not be negative, got %s", r.SettlePause)
	}
	if r.MaxPasses <= 0 {
		return fmt.Errorf("max passes must be positive, got %d", r.MaxPasses)
	}
	return nil
}

// Result is the outcome of a successful harvest.
type Result struct {
	SessionID string
	Records   []MessageRecord
	Passes    int
	Stop      StopReason
	// Captured counts every record assembled before the cap was applied.
	Captured int
	// Skipped counts items dropped as malformed across all passes.
	Skipped int
}

// Failure is returned when a harvest terminates in StateFailed.
type Failure struct {
	SessionID string
	Pass      int
	State     State
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("harvest %s failed in %s (pass %d): %v", f.SessionID, f.State, f.Pass, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Options configures a Harvester.
type Options struct {
	NoProgressLimit   int
	AffordanceTimeout time.Duration
	Logger            *zap.Logger
	// Observer, when set, is called on every state transition.
	Observer func(from, to State)
}

// Harvester runs harvest sessions against one Connector. It keeps no state between
// calls; callers must still serialize harvests that share a host window.
type Harvester struct {
	connector       Connector
	noProgressLimit int
	scroll          *ScrollDriver
	walker          *ElementWalker
	assembler       RecordAssembler
	observer        func(from, to State)
	logger          *zap.Logger
}

// New creates a Harvester.
func New(connector Connector, opts Options) *Harvester {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.NoProgressLimit
	if limit <= 0 {
		limit = DefaultNoProgressLimit
	}
	return &Harvester{
		connector:       connector,
		noProgressLimit: limit,
		scroll:          NewScrollDriver(opts.AffordanceTimeout, logger),
		walker:          NewElementWalker(logger),
		observer:        opts.Observer,
		logger:          logger,
	}
}

type session struct {
	id         string
	target     int
	seen       *IdentityIndex
	records    []MessageRecord
	next       int
	remaining  int
	noProgress int
	passes     int
	skipped    int
	state      State
}

// Harvest runs one session and returns the capped, capture-ordered records.
// On failure no partial result is returned.
func (h *Harvester) Harvest(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s := &session{
		id:        uuid.NewString(),
		target:    req.TargetCount,
		seen:      NewIdentityIndex(),
		remaining: req.MaxPasses,
		state:     StateIdle,
	}
	log := h.logger.With(zap.String("harvest", s.id))
	log.Debug("harvest started",
		zap.Int("target", req.TargetCount),
		zap.Int("wheel", req.WheelDistance),
		zap.Duration("settle", req.SettlePause),
		zap.Int("max_passes", req.MaxPasses))

	list, err := h.connector.LocateConversationList(ctx)
	if err != nil {
		return nil, h.fail(log, s, fmt.Errorf("locate conversation list: %w", err))
	}

	for {
		s.passes++
		s.remaining--

		h.transition(log, s, StateScrolling)
		if err := ctx.Err(); err != nil {
			return nil, h.fail(log, s, err)
		}
		loaded, err := h.scroll.Advance(ctx, list, req.WheelDistance, req.SettlePause)
		if err != nil {
			return nil, h.fail(log, s, err)
		}

		h.transition(log, s, StateWalking)
		handles, skipped, err := h.walker.Snapshot(ctx, list)
		if err != nil {
			if fatal(ctx, err) {
				return nil, h.fail(log, s, err)
			}
			log.Warn("snapshot failed, treating pass as empty", zap.Int("pass", s.passes), zap.Error(err))
			handles = nil
		}
		s.skipped += skipped

		fresh := make([]ElementHandle, 0, len(handles))
		for _, hd := range handles {
			id := hd.Identity()
			if !s.seen.IsNew(id) {
				continue
			}
			s.seen.MarkSeen(id)
			fresh = append(fresh, hd)
		}

		h.transition(log, s, StateAssembling)
		before := len(s.records)
		for _, hd := range fresh {
			s.records, s.next = h.assembler.Assemble(s.records, hd, s.next)
		}
		gained := len(s.records) - before
		if gained == 0 {
			s.noProgress++
		} else {
			s.noProgress = 0
		}

		log.Debug("pass complete",
			zap.Int("pass", s.passes),
			zap.Bool("loaded_more", loaded),
			zap.Int("visible", len(handles)),
			zap.Int("new_items", len(fresh)),
			zap.Int("new_records", gained),
			zap.Int("skipped", skipped),
			zap.Int("total", len(s.records)),
			zap.Int("no_progress", s.noProgress))

		if reason, done := h.decide(s); done {
			h.transition(log, s, StateDone)
			res := s.result(reason)
			log.Info("harvest done",
				zap.String("stop", string(reason)),
				zap.Int("passes", res.Passes),
				zap.Int("records", len(res.Records)),
				zap.Int("captured", res.Captured))
			return res, nil
		}
	}
}

func (h *Harvester) decide(s *session) (StopReason, bool) {
	switch {
	case len(s.records) >= s.target:
		return StopTargetReached, true
	case s.remaining <= 0:
		return StopBudgetExhausted, true
	case s.noProgress >= h.noProgressLimit:
		return StopNoProgress, true
	}
	return "", false
}

func (h *Harvester) transition(log *zap.Logger, s *session, to State) {
	from := s.state
	s.state = to
	log.Debug("state", zap.Stringer("from", from), zap.Stringer("to", to), zap.Int("pass", s.passes))
	if h.observer != nil {
		h.observer(from, to)
	}
}

func (h *Harvester) fail(log *zap.Logger, s *session, err error) error {
	at := s.state
	h.transition(log, s, StateFailed)
	f := &Failure{SessionID: s.id, Pass: s.passes, State: at, Err: err}
	if errors.Is(err, ErrConnectionLost) {
		log.Error("harvest aborted", zap.Error(f))
	} else {
		log.Warn("harvest aborted", zap.Error(f))
	}
	return f
}

// result orders records by capture and keeps the earliest-captured target entries.
func (s *session) result(reason StopReason) *Result {
	records := slices.Clone(s.records)
	slices.SortStableFunc(records, func(a, b MessageRecord) int { return cmp.Compare(a.Order, b.Order) })
	captured := len(records)
	if len(records) > s.target {
		records = records[:s.target]
	}
	return &Result{
		SessionID: s.id,
		Records:   records,
		Passes:    s.passes,
		Stop:      reason,
		Captured:  captured,
		Skipped:   s.skipped,
	}
}
