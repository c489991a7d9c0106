package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jwebster45206/gm-engine/internal/services/events"
)

// fakeEventSource replays a fixed list of events and then closes the stream.
type fakeEventSource struct {
	events []events.Event
	err    error
	gotID  uuid.UUID
}

func (f *fakeEventSource) Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan events.Event, error) {
	f.gotID = sessionID
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan events.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func TestEventsHandler_StreamsEvents(t *testing.T) {
	id := uuid.New()
	source := &fakeEventSource{events: []events.Event{
		{Type: events.EventTypeStateUpdated, SessionID: id.String(), Data: map[string]any{"outcome": "applied"}},
		{Type: events.EventTypeIngestFailed, SessionID: id.String(), Data: map[string]any{"stage": "parse"}},
	}}
	handler := NewEventsHandler(source, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/events/sessions/"+id.String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if source.gotID != id {
		t.Errorf("Expected subscription for %s, got %s", id, source.gotID)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected text/event-stream, got %s", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"event: connected\n",
		"event: world.state_updated\n",
		`"outcome":"applied"`,
		"event: world.ingest_failed\n",
		`"stage":"parse"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected stream to contain %q, got:\n%s", want, body)
		}
	}
	if strings.Index(body, "world.state_updated") > strings.Index(body, "world.ingest_failed") {
		t.Error("Expected events in publish order")
	}
}

func TestEventsHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		source         *fakeEventSource
		expectedStatus int
	}{
		{
			name:           "wrong method",
			method:         http.MethodPost,
			path:           "/v1/events/sessions/" + uuid.NewString(),
			source:         &fakeEventSource{},
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "missing id",
			method:         http.MethodGet,
			path:           "/v1/events/sessions",
			source:         &fakeEventSource{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad id",
			method:         http.MethodGet,
			path:           "/v1/events/sessions/nope",
			source:         &fakeEventSource{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "subscribe fails",
			method:         http.MethodGet,
			path:           "/v1/events/sessions/" + uuid.NewString(),
			source:         &fakeEventSource{err: errors.New("redis down")},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewEventsHandler(tt.source, testLogger())
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}
