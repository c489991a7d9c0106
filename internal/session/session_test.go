package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/ingest"
	"github.com/jwebster45206/gm-engine/pkg/state"
)

const goldReply = "The door opens.\n```json\n{\"message\":\"You find gold.\",\"data\":{\"playerSetGold\":{\"type\":\"SET_PLAYER_GOLD\",\"payload\":150}}}\n```"

type recordedEvent struct {
	kind    string
	outcome string
	stage   string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishStateUpdated(_ context.Context, _, _ uuid.UUID, outcome string, _ []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: "updated", outcome: outcome})
	return nil
}

func (p *fakePublisher) PublishIngestFailed(_ context.Context, _, _ uuid.UUID, stage string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: "failed", stage: stage})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorld(t *testing.T) state.WorldState {
	t.Helper()
	ws, err := state.NewWorldState(state.Seed{
		Player:   state.Player{Name: "Aria", MaxHealth: 20, Gold: 10},
		Party:    []state.Companion{{Name: "Zorg", MaxHealth: 12}},
		Campaign: state.Campaign{Name: "The Sunken Keep"},
	})
	require.NoError(t, err)
	return ws
}

func newSession(t *testing.T, source services.TextSource, opts Options) *Session {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	s := New(newWorld(t), source, opts)
	t.Cleanup(s.Close)
	return s
}

// waitInFlight blocks until the session's fetch has started.
func waitInFlight(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, s.InFlight, 2*time.Second, time.Millisecond)
}

func TestSession_SubmitAppliesCommands(t *testing.T) {
	source := services.NewMockTextSource(goldReply)
	pub := &fakePublisher{}
	s := newSession(t, source, Options{Publisher: pub, HistoryLimit: 6})

	turn, err := s.Submit(context.Background(), "I search the chest.")
	require.NoError(t, err)

	assert.Equal(t, ingest.OutcomeApplied, turn.Outcome)
	assert.Equal(t, "You find gold.", turn.Message)
	assert.NotEqual(t, uuid.Nil, turn.ID)
	assert.Equal(t, 150, s.State().Player.Gold)

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, chat.ChatMessage{Role: chat.ChatRoleUser, Content: "I search the chest."}, history[0])
	assert.Equal(t, goldReply, history[1].Content)

	calls := source.GetCalls()
	require.Len(t, calls, 1)
	msgs := calls[0].Messages
	assert.Equal(t, chat.ChatRoleSystem, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-2].Content, "I search the chest.\n\nGame state so far: "))

	assert.Equal(t, []recordedEvent{{kind: "updated", outcome: "applied"}}, pub.events)
}

func TestSession_HistoryCarriesIntoNextTurn(t *testing.T) {
	source := services.NewMockTextSource("The wind howls.", goldReply)
	s := newSession(t, source, Options{HistoryLimit: 6})

	_, err := s.Submit(context.Background(), "I listen.")
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), "I search.")
	require.NoError(t, err)

	second := source.GetCalls()[1].Messages
	// system, two history entries, user, reminder
	require.Len(t, second, 5)
	assert.Equal(t, "I listen.", second[1].Content)
	assert.Equal(t, "The wind howls.", second[2].Content)
	assert.True(t, strings.Contains(second[3].Content, `"gold":10`), "state sent with turn should be current")
}

func TestSession_RejectedPayloadSetsError(t *testing.T) {
	source := services.NewMockTextSource("Hmm.\n```json\n{\"message\": oops}\n```")
	pub := &fakePublisher{}
	s := newSession(t, source, Options{Publisher: pub})

	turn, err := s.Submit(context.Background(), "I act.")
	require.NoError(t, err, "ingestion failures are not turn errors")

	assert.Equal(t, ingest.OutcomeRejected, turn.Outcome)
	assert.ErrorIs(t, turn.Err, ingest.ErrMalformedPayload)
	assert.True(t, strings.HasPrefix(s.State().ErrorMessage(), ingest.ParseFailureMessage))
	assert.Equal(t, []recordedEvent{{kind: "failed", stage: "parse"}}, pub.events)

	require.NoError(t, s.ClearError())
	assert.Nil(t, s.State().Error)
}

func TestSession_FetchErrorLeavesStateUntouched(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetChatError(errors.New("upstream down"))
	s := newSession(t, source, Options{})
	before := s.State()

	_, err := s.Submit(context.Background(), "I act.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
	assert.Equal(t, before, s.State())
	assert.Empty(t, s.History())
}

func TestSession_CancelDiscardsTurn(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetBlocking()
	s := newSession(t, source, Options{})
	before := s.State()

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "I wait.")
		errc <- err
	}()
	waitInFlight(t, s)
	s.Cancel()

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s.State())
	assert.False(t, s.InFlight())

	// The lock is released after cancellation.
	source.ChatFunc = nil
	source.Responses = []string{goldReply}
	_, err = s.Submit(context.Background(), "I try again.")
	require.NoError(t, err)
}

func TestSession_ConcurrentSubmitFailsFast(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetBlocking()
	s := newSession(t, source, Options{})

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "first")
		errc <- err
	}()
	waitInFlight(t, s)

	_, err := s.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	s.Cancel()
	<-errc
}

func TestSession_FetchTimeout(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetBlocking()
	s := newSession(t, source, Options{FetchTimeout: 20 * time.Millisecond})

	_, err := s.Submit(context.Background(), "I wait.")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_Close(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetBlocking()
	s := newSession(t, source, Options{})

	errc := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "I wait.")
		errc <- err
	}()
	waitInFlight(t, s)
	s.Close()

	assert.ErrorIs(t, <-errc, context.Canceled)

	_, err := s.Submit(context.Background(), "hello?")
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.ClearError(), ErrSessionClosed)
	_, err = s.Start(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_SubmitValidatesMessage(t *testing.T) {
	s := newSession(t, services.NewMockTextSource(), Options{})
	_, err := s.Submit(context.Background(), "")
	assert.Error(t, err)
	_, err = s.Submit(context.Background(), strings.Repeat("a", chat.MaxMessageLength+1))
	assert.Error(t, err)
}

func TestSession_Start(t *testing.T) {
	source := services.NewMockTextSource(goldReply)
	s := newSession(t, source, Options{})

	turn, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ingest.OutcomeApplied, turn.Outcome)
	assert.True(t, s.Started())
	ws := s.State()
	assert.Equal(t, 150, ws.Player.Gold)
	assert.False(t, ws.IsLoading, "loading is cleared once the opening turn is done")

	msgs := source.GetCalls()[0].Messages
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Name: The Sunken Keep")
	assert.Contains(t, msgs[1].Content, "Name: Aria")

	_, err = s.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSession_StartLoadingDuringFetch(t *testing.T) {
	source := services.NewMockTextSource()
	release := make(chan struct{})
	source.ChatFunc = func(ctx context.Context, _ []chat.ChatMessage) (string, error) {
		<-release
		return "The adventure begins.", nil
	}
	s := newSession(t, source, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Start(context.Background())
	}()
	waitInFlight(t, s)
	assert.True(t, s.State().IsLoading)

	close(release)
	<-done
	assert.False(t, s.State().IsLoading)
	assert.True(t, s.Started())
}

func TestSession_StartFailure(t *testing.T) {
	source := services.NewMockTextSource()
	source.SetChatError(errors.New("no credits"))
	s := newSession(t, source, Options{})

	_, err := s.Start(context.Background())
	require.Error(t, err)

	ws := s.State()
	assert.Equal(t, InitFailureMessage, ws.ErrorMessage())
	assert.False(t, ws.IsLoading)
	assert.False(t, s.Started())

	// A later attempt may succeed.
	source.ChatFunc = nil
	source.Responses = []string{"Welcome, traveller."}
	turn, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ingest.OutcomeNarration, turn.Outcome)
	assert.Equal(t, InitFailureMessage, s.State().ErrorMessage(), "error is only cleared explicitly")
}

func TestSession_RedisLockSharedAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	id := uuid.New()
	blocking := services.NewMockTextSource()
	blocking.SetBlocking()

	a := newSession(t, blocking, Options{ID: id, Lock: services.NewRedisTurnLock(client, time.Minute, testLogger())})
	b := newSession(t, services.NewMockTextSource(goldReply), Options{ID: id, Lock: services.NewRedisTurnLock(client, time.Minute, testLogger())})

	errc := make(chan error, 1)
	go func() {
		_, err := a.Submit(context.Background(), "first")
		errc <- err
	}()
	waitInFlight(t, a)

	_, err := b.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrTurnInFlight)

	a.Cancel()
	<-errc

	_, err = b.Submit(context.Background(), "second")
	require.NoError(t, err)
	assert.Equal(t, 150, b.State().Player.Gold)
}

func TestSession_LoaderFailureReleasesLock(t *testing.T) {
	source := services.NewMockTextSource(goldReply)
	failing := true
	s := newSession(t, source, Options{Loader: func(ctx context.Context) (*state.WorldState, error) {
		if failing {
			return nil, errors.New("store down")
		}
		return nil, nil
	}})

	_, err := s.Submit(context.Background(), "I open the chest.")
	require.ErrorContains(t, err, "failed to reload world state")
	assert.Empty(t, source.GetCalls())

	failing = false
	turn, err := s.Submit(context.Background(), "I open the chest.")
	require.NoError(t, err)
	assert.Equal(t, 150, turn.State.Player.Gold)
}
