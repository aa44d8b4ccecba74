package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skydrop/server/internal/domain/level"
	"github.com/skydrop/server/internal/domain/object"
	"github.com/skydrop/server/internal/events"
	"github.com/skydrop/server/internal/feedback"
	"github.com/skydrop/server/internal/platform/logger"
	"github.com/skydrop/server/internal/platform/metrics"
)

// GraceDelay is how long leftover objects stay visible after a level
// resolves, so in-flight falls can visually finish before the board clears.
const GraceDelay = 250 * time.Millisecond

// ErrInvalidLevel is returned by Start for an out-of-range level index.
// The session state is left unchanged.
var ErrInvalidLevel = errors.New("level index out of range")

// Phase is the session state machine phase.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseRunning  Phase = "RUNNING"
	PhaseResolved Phase = "RESOLVED"
)

// Outcome is the pass/fail decision of a level attempt, computed exactly
// once per session generation.
type Outcome struct {
	Passed       bool `json:"passed"`
	IsFinalLevel bool `json:"is_final_level"`
	// AllCleared is the terminal campaign signal, distinct from an
	// intermediate-level pass, so the presentation layer can route to an
	// end-of-game view instead of a next-level prompt.
	AllCleared bool `json:"all_cleared"`
}

// State is the renderable snapshot of the session, pushed to the listener
// on every change.
type State struct {
	Phase        Phase     `json:"phase"`
	LevelIndex   int       `json:"level_index"`
	LevelOrdinal int       `json:"level_ordinal"`
	Score        int       `json:"score"`
	TargetScore  int       `json:"target_score"`
	RemainingMs  int64     `json:"remaining_ms"`
	StartedAt    time.Time `json:"started_at"`
	Generation   uint64    `json:"generation"`
	Outcome      *Outcome  `json:"outcome,omitempty"`
}

// Listener receives state notifications for rendering. Callbacks are
// invoked from the session loop and must return quickly.
type Listener interface {
	// OnPhaseChange fires on every visible state change (transitions,
	// score increments, countdown updates).
	OnPhaseChange(state State)
	// OnObjectsChanged fires on every insert, removal, or clear, with the
	// live objects in spawn order.
	OnObjectsChanged(objects []object.View)
}

type msgKind int

const (
	msgStart msgKind = iota
	msgTap
	msgFinish
	msgTick
	msgSpawn
	msgComplete
	msgGrace
)

type sessionMsg struct {
	kind       msgKind
	gen        uint64
	levelIndex int
	elapsed    time.Duration
	obj        object.Falling
	objectID   string
}

// Controller is the session state machine. It owns phase, score, remaining
// time and the active level configuration, and reacts to taps, clock ticks
// and animator completions. All inputs funnel through one event-loop
// goroutine; timer messages carry the generation they were armed under and
// stale generations are dropped, so a timer from a superseded level can
// never corrupt the current one.
type Controller struct {
	catalog  *level.Catalog
	journal  *events.Log
	logger   *logger.Logger
	listener Listener
	haptics  feedback.Feedback

	clock    *Clock
	spawner  *Spawner
	registry *Registry

	msgs chan sessionMsg

	// State below is owned by the session loop.
	generation uint64
	phase      Phase
	levelIndex int
	cfg        level.Config
	score      int
	remaining  time.Duration
	startedAt  time.Time
	outcome    *Outcome
}

// NewController creates an idle session controller bound to a catalog.
func NewController(catalog *level.Catalog, journal *events.Log, log *logger.Logger) *Controller {
	return &Controller{
		catalog:    catalog,
		journal:    journal,
		logger:     log,
		haptics:    feedback.Noop{},
		clock:      NewClock(),
		spawner:    NewSpawner(),
		registry:   NewRegistry(),
		msgs:       make(chan sessionMsg, 256),
		phase:      PhaseIdle,
		levelIndex: -1,
	}
}

// SetListener wires the presentation collaborator. Call before Run.
func (c *Controller) SetListener(l Listener) {
	c.listener = l
}

// SetFeedback wires the optional haptics collaborator. Call before Run.
func (c *Controller) SetFeedback(f feedback.Feedback) {
	if f != nil {
		c.haptics = f
	}
}

// Run drives the session loop until the context is cancelled. Call in a
// goroutine.
func (c *Controller) Run(ctx context.Context) {
	c.logger.Info("Session loop started (%d levels in catalog)", c.catalog.Len())
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case m := <-c.msgs:
			c.dispatch(m)
		}
	}
}

// Start begins the level at the given 0-based index. It always resets score
// and remaining time to the level's full values, regardless of prior phase.
// An out-of-range index is rejected with ErrInvalidLevel and the state is
// left unchanged.
func (c *Controller) Start(levelIndex int) error {
	if _, ok := c.catalog.Get(levelIndex); !ok {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, levelIndex)
	}
	c.post(sessionMsg{kind: msgStart, levelIndex: levelIndex})
	return nil
}

// Tap resolves a player tap on an object id. An unknown or already-removed
// id is silently ignored; that race is expected, not an error.
func (c *Controller) Tap(objectID string) {
	c.post(sessionMsg{kind: msgTap, objectID: objectID})
}

// FinishEarly ends the running level immediately, resolving the current
// score against the target.
func (c *Controller) FinishEarly() {
	c.post(sessionMsg{kind: msgFinish})
}

// post hands a message to the session loop without blocking. Timer
// callbacks must never stall, so a full queue drops the message.
func (c *Controller) post(m sessionMsg) {
	select {
	case c.msgs <- m:
	default:
		metrics.Get().RecordQueueDrop()
		c.logger.Warn("Session queue full, dropping message kind=%d", m.kind)
	}
}

func (c *Controller) dispatch(m sessionMsg) {
	switch m.kind {
	case msgStart:
		c.handleStart(m.levelIndex)
	case msgTap:
		c.handleTap(m.objectID)
	case msgFinish:
		c.handleFinish()
	case msgTick:
		c.handleTick(m.gen, m.elapsed)
	case msgSpawn:
		c.handleSpawn(m.gen, m.obj)
	case msgComplete:
		c.handleComplete(m.gen, m.objectID)
	case msgGrace:
		c.handleGrace(m.gen)
	}
}

// stale reports whether a timer message belongs to a superseded session
// generation and should be dropped.
func (c *Controller) stale(gen uint64) bool {
	if gen != c.generation {
		metrics.Get().RecordStaleDrop()
		return true
	}
	return false
}

func (c *Controller) handleStart(levelIndex int) {
	cfg, ok := c.catalog.Get(levelIndex)
	if !ok {
		return
	}

	// Invalidate every outstanding timer before touching state.
	c.generation++
	c.clock.Stop()
	c.spawner.Stop()
	c.registry.Clear()

	c.phase = PhaseRunning
	c.levelIndex = levelIndex
	c.cfg = cfg
	c.score = 0
	c.remaining = cfg.Duration()
	c.startedAt = time.Now()
	c.outcome = nil

	c.journal.Append(events.Event{
		Type:         events.TypeLevelStarted,
		Generation:   c.generation,
		LevelOrdinal: cfg.Ordinal,
		Payload: events.StartPayload{
			LevelOrdinal:    cfg.Ordinal,
			DurationMs:      cfg.DurationMs,
			TargetScore:     cfg.TargetScore,
			SpawnIntervalMs: cfg.SpawnIntervalMs,
			FallDurationMs:  cfg.FallDurationMs,
		},
	})
	metrics.Get().RecordLevelStart()
	c.logger.Info("Level %d started: target=%d duration=%s", cfg.Ordinal, cfg.TargetScore, cfg.Duration())

	c.notifyPhase()
	c.notifyObjects()

	gen := c.generation
	c.clock.Start(TickInterval, func(elapsed time.Duration) {
		c.post(sessionMsg{kind: msgTick, gen: gen, elapsed: elapsed})
	})
	c.spawner.Start(cfg.SpawnInterval(), cfg.FallDuration(), func(obj object.Falling) {
		c.post(sessionMsg{kind: msgSpawn, gen: gen, obj: obj})
	})
}

func (c *Controller) handleTick(gen uint64, elapsed time.Duration) {
	if c.stale(gen) || c.phase != PhaseRunning {
		return
	}
	metrics.Get().RecordTick()

	remaining := c.cfg.Duration() - elapsed
	if remaining < 0 {
		remaining = 0
	}
	// Remaining is monotonically non-increasing while running.
	if remaining < c.remaining {
		c.remaining = remaining
	}

	if c.remaining == 0 {
		c.resolve("EXPIRED")
		return
	}
	c.notifyPhase()
}

func (c *Controller) handleSpawn(gen uint64, obj object.Falling) {
	if c.stale(gen) || c.phase != PhaseRunning {
		return
	}

	anim := StartFall(obj, func() {
		c.post(sessionMsg{kind: msgComplete, gen: gen, objectID: obj.ID})
	})
	c.registry.Insert(obj, anim)

	c.journal.Append(events.Event{
		Type:         events.TypeObjectSpawned,
		Generation:   gen,
		LevelOrdinal: c.cfg.Ordinal,
		ObjectID:     obj.ID,
		Payload: events.SpawnPayload{
			X:              obj.X,
			Size:           obj.Size,
			FallDurationMs: obj.FallDuration.Milliseconds(),
		},
	})
	metrics.Get().RecordSpawn()
	c.notifyObjects()
}

func (c *Controller) handleTap(objectID string) {
	if c.phase != PhaseRunning {
		return
	}

	if !c.registry.Remove(objectID) {
		// Already consumed by a completion (or never existed). Expected race.
		metrics.Get().RecordTap(false)
		return
	}

	c.score++
	c.journal.Append(events.Event{
		Type:         events.TypeObjectTapped,
		Generation:   c.generation,
		LevelOrdinal: c.cfg.Ordinal,
		ObjectID:     objectID,
		Payload:      events.TapPayload{Score: c.score},
	})
	metrics.Get().RecordTap(true)
	c.safeFeedback(c.haptics.LightImpact)

	c.notifyPhase()
	c.notifyObjects()
}

func (c *Controller) handleComplete(gen uint64, objectID string) {
	if c.stale(gen) {
		return
	}
	// No phase check: a fall finishing inside the post-resolution grace
	// window still cleans up its entry. Score never changes here.
	if !c.registry.Remove(objectID) {
		return
	}

	c.journal.Append(events.Event{
		Type:         events.TypeObjectMissed,
		Generation:   gen,
		LevelOrdinal: c.cfg.Ordinal,
		ObjectID:     objectID,
	})
	metrics.Get().RecordMiss()
	c.notifyObjects()
}

func (c *Controller) handleFinish() {
	if c.phase != PhaseRunning {
		return
	}
	c.resolve("FINISH_EARLY")
}

func (c *Controller) handleGrace(gen uint64) {
	if c.stale(gen) {
		return
	}
	if c.registry.Clear() > 0 {
		c.notifyObjects()
	}
}

// resolve computes the outcome and moves to Resolved. First resolution wins
// for a given generation; the phase guard makes later attempts no-ops.
func (c *Controller) resolve(cause string) {
	if c.phase != PhaseRunning {
		return
	}

	c.clock.Stop()
	c.spawner.Stop()

	passed := c.score >= c.cfg.TargetScore
	isFinal := c.catalog.IsFinal(c.levelIndex)
	c.outcome = &Outcome{
		Passed:       passed,
		IsFinalLevel: isFinal,
		AllCleared:   passed && isFinal,
	}
	c.phase = PhaseResolved

	c.journal.Append(events.Event{
		Type:         events.TypeLevelResolved,
		Generation:   c.generation,
		LevelOrdinal: c.cfg.Ordinal,
		Payload: events.ResolvePayload{
			Score:        c.score,
			TargetScore:  c.cfg.TargetScore,
			Passed:       passed,
			IsFinalLevel: isFinal,
			Cause:        cause,
		},
	})
	metrics.Get().RecordResolution(passed)
	c.logger.Info("Level %d resolved: score=%d/%d passed=%t cause=%s", c.cfg.Ordinal, c.score, c.cfg.TargetScore, passed, cause)

	if passed {
		c.safeFeedback(c.haptics.Success)
	}
	c.notifyPhase()

	// Leave leftover objects visible briefly so their falls visually finish.
	gen := c.generation
	time.AfterFunc(GraceDelay, func() {
		c.post(sessionMsg{kind: msgGrace, gen: gen})
	})
}

func (c *Controller) shutdown() {
	c.clock.Stop()
	c.spawner.Stop()
	c.registry.Clear()
	c.logger.Info("Session loop stopped")
}

func (c *Controller) snapshot() State {
	s := State{
		Phase:       c.phase,
		LevelIndex:  c.levelIndex,
		Score:       c.score,
		RemainingMs: c.remaining.Milliseconds(),
		StartedAt:   c.startedAt,
		Generation:  c.generation,
		Outcome:     c.outcome,
	}
	if c.levelIndex >= 0 {
		s.LevelOrdinal = c.cfg.Ordinal
		s.TargetScore = c.cfg.TargetScore
	}
	return s
}

func (c *Controller) notifyPhase() {
	if c.listener == nil {
		return
	}
	c.listener.OnPhaseChange(c.snapshot())
}

func (c *Controller) notifyObjects() {
	if c.listener == nil {
		return
	}
	c.listener.OnObjectsChanged(c.registry.Views(time.Now()))
}

// safeFeedback invokes a haptics notification so that a misbehaving
// collaborator can never take the session loop down with it.
func (c *Controller) safeFeedback(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Feedback collaborator panicked: %v", r)
		}
	}()
	fn()
}
