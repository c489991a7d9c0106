package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/ingest"
	"github.com/jwebster45206/gm-engine/pkg/prompts"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

// InitFailureMessage is recorded when the opening turn cannot be fetched.
const InitFailureMessage = "Failed to initialize the assistant"

var (
	// ErrTurnInFlight is returned when a turn is submitted while another is running.
	ErrTurnInFlight = errors.New("a turn is already in progress")

	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("session is closed")

	// ErrAlreadyStarted is returned by a second successful Start.
	ErrAlreadyStarted = errors.New("session already started")
)

// Publisher receives turn events. *events.Broadcaster implements it.
type Publisher interface {
	PublishStateUpdated(ctx context.Context, sessionID, turnID uuid.UUID, outcome string, applied []string) error
	PublishIngestFailed(ctx context.Context, sessionID, turnID uuid.UUID, stage string, errorMsg string) error
}

// Loader returns the latest shared world state for a session, or nil when
// there is none.
type Loader func(ctx context.Context) (*state.WorldState, error)

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	ID           uuid.UUID
	HistoryLimit int
	FetchTimeout time.Duration
	Lock         services.TurnLock
	Publisher    Publisher
	Logger       *slog.Logger

	// Loader, when set, is consulted once the turn lock is held so a turn
	// played by another process is not overwritten.
	Loader Loader
}

// Turn is the outcome of one exchange with the game master.
type Turn struct {
	ID uuid.UUID
	ingest.Result
}

// Session owns one world state and runs turns against it one at a time.
type Session struct {
	id           uuid.UUID
	source       services.TextSource
	engine       *ingest.Engine
	lock         services.TurnLock
	publisher    Publisher
	loader       Loader
	logger       *slog.Logger
	historyLimit int
	fetchTimeout time.Duration

	mu      sync.Mutex // protects the fields below
	ws      state.WorldState
	history []chat.ChatMessage
	cancel  context.CancelFunc
	started bool
	closed  bool
}

// New creates a session over ws that talks to source.
func New(ws state.WorldState, source services.TextSource, opts Options) *Session {
	if opts.ID == uuid.Nil {
		opts.ID = uuid.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lock == nil {
		opts.Lock = services.NewMemoryTurnLock()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	logger := opts.Logger.With("session_id", opts.ID.String())

	return &Session{
		id:           opts.ID,
		source:       source,
		engine:       ingest.NewEngine(logger),
		lock:         opts.Lock,
		publisher:    opts.Publisher,
		loader:       opts.Loader,
		logger:       logger,
		historyLimit: opts.HistoryLimit,
		fetchTimeout: opts.FetchTimeout,
		ws:           ws,
		history:      make([]chat.ChatMessage, 0),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns a copy of the current world state.
func (s *Session) State() state.WorldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.DeepCopy()
}

// History returns a copy of the transcript.
func (s *Session) History() []chat.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Started reports whether the opening turn has completed.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// InFlight reports whether a fetch is currently running.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// ClearError clears the error flag.
func (s *Session) ClearError() error {
	return s.apply(state.ClearError())
}

// Cancel aborts the in-flight fetch, if any. The aborted turn changes nothing.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Close cancels any in-flight fetch and ends the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("Session closed")
}

// Start plays the opening turn: the game master is introduced to the
// campaign and characters, and its reply is ingested. Loading is set for the
// duration of the fetch. A failed fetch records InitFailureMessage and may be
// retried.
func (s *Session) Start(ctx context.Context) (*Turn, error) {
	if s.Started() {
		return nil, ErrAlreadyStarted
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	if err := s.apply(state.SetLoading(true)); err != nil {
		return nil, err
	}
	defer func() { _ = s.apply(state.SetLoading(false)) }()

	ws := s.State()
	messages, err := prompts.BuildOpening(&ws)
	if err != nil {
		return nil, fmt.Errorf("failed to build opening prompt: %w", err)
	}

	reply, err := s.fetch(ctx, messages)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			_ = s.apply(state.SetErrorText(InitFailureMessage))
		}
		s.logger.Error("Failed to initialize the game master", "error", err)
		return nil, fmt.Errorf("opening turn: %w", err)
	}

	turn, err := s.ingest(ctx, messages[len(messages)-1].Content, reply)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return turn, nil
}

// Submit plays one turn for the player's message. It fails fast with
// ErrTurnInFlight while another turn runs. Fetch failures, including
// cancellation, return an error and leave the world state untouched.
// Shortcuts such as "inventory" are answered locally and not recorded.
func (s *Session) Submit(ctx context.Context, text string) (*Turn, error) {
	req := chat.TurnRequest{SessionID: s.id, Message: text}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if reply, ok := TryShortcut(s.State(), text); ok {
		return &Turn{
			ID:     uuid.New(),
			Result: ingest.Result{State: s.State(), Message: reply, Outcome: ingest.OutcomeNarration},
		}, nil
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.release(unlock)

	s.mu.Lock()
	ws := s.ws
	history := slices.Clone(s.history)
	s.mu.Unlock()

	messages, err := prompts.BuildMessages(&ws, history, text, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	reply, err := s.fetch(ctx, messages)
	if err != nil {
		s.logger.Warn("Turn fetch failed", "error", err)
		return nil, fmt.Errorf("turn: %w", err)
	}

	return s.ingest(ctx, text, reply)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) acquire(ctx context.Context) (services.UnlockFunc, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	unlock, err := s.lock.TryLock(ctx, s.id.String())
	if errors.Is(err, services.ErrLockHeld) {
		return nil, ErrTurnInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	if err := s.reload(ctx); err != nil {
		s.release(unlock)
		return nil, err
	}
	return unlock, nil
}

// reload replaces the world state with the loader's copy. Callers hold the
// turn lock.
func (s *Session) reload(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	ws, err := s.loader(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload world state: %w", err)
	}
	if ws == nil {
		return nil
	}
	s.mu.Lock()
	s.ws = *ws
	s.mu.Unlock()
	return nil
}

func (s *Session) release(unlock services.UnlockFunc) {
	if err := unlock(context.Background()); err != nil {
		s.logger.Error("Failed to release turn lock", "error", err)
	}
}

// fetch calls the text source under the session's cancel func and timeout.
func (s *Session) fetch(ctx context.Context, messages []chat.ChatMessage) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	start := time.Now()
	reply, err := s.source.Chat(fetchCtx, messages)
	if err != nil {
		return "", err
	}
	// A source that ignores its context still yields nothing once cancelled.
	if err := fetchCtx.Err(); err != nil {
		return "", err
	}
	s.logger.Debug("Fetched game master reply", "duration", time.Since(start), "length", len(reply))
	return reply, nil
}

// ingest applies reply to the current state and records the exchange.
func (s *Session) ingest(ctx context.Context, userText, reply string) (*Turn, error) {
	turn := &Turn{ID: uuid.New()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	turn.Result = s.engine.Ingest(s.ws, reply)
	s.ws = turn.Result.State
	turn.Result.State = s.ws.DeepCopy()
	s.history = append(s.history,
		chat.ChatMessage{Role: chat.ChatRoleUser, Content: userText},
		chat.ChatMessage{Role: chat.ChatRoleAgent, Content: reply},
	)
	s.mu.Unlock()

	s.publish(ctx, turn)
	return turn, nil
}

func (s *Session) publish(ctx context.Context, turn *Turn) {
	if s.publisher == nil {
		return
	}
	var err error
	if turn.Outcome == ingest.OutcomeRejected {
		err = s.publisher.PublishIngestFailed(ctx, s.id, turn.ID, ingest.Stage(turn.Err), turn.Err.Error())
	} else {
		kinds := make([]string, len(turn.Applied))
		for i, c := range turn.Applied {
			kinds[i] = c.String()
		}
		err = s.publisher.PublishStateUpdated(ctx, s.id, turn.ID, string(turn.Outcome), kinds)
	}
	if err != nil {
		s.logger.Warn("Failed to publish turn event", "error", err, "turn_id", turn.ID)
	}
}

func (s *Session) apply(cmd state.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	next, err := state.Reduce(s.ws, cmd)
	if err != nil {
		return err
	}
	s.ws = next
	return nil
}
