package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/symplistic/contentiq-widget/internal/client"
	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/render"
	"github.com/symplistic/contentiq-widget/internal/signer"
	"github.com/symplistic/contentiq-widget/internal/store"
	"github.com/symplistic/contentiq-widget/internal/transcript"
)

const (
	testAgent  = "agent-1"
	testSecret = "00112233445566778899aabbccddeeff"
)

type recordedTranscript struct {
	mu     sync.Mutex
	events []transcript.Event
}

func (r *recordedTranscript) Log(ev transcript.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedTranscript) Close() error { return nil }

func (r *recordedTranscript) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type stub struct {
	handler    *Handler
	transcript *recordedTranscript
	clock   *clock.Fake
	metrics *metrics.Metrics
	server  *httptest.Server
	client  *client.Client
}

func newStub(t *testing.T, mutate func(*Settings)) *stub {
	t.Helper()

	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	settings := Settings{
		Agents:        map[string]string{testAgent: testSecret},
		MaxSkew:       5 * time.Minute,
		ThreadTimeout: 5 * time.Minute,
		Styling:       map[string]any{"primary_color": "#ff0000"},
	}
	if mutate != nil {
		mutate(&settings)
	}

	m := metrics.New(prometheus.NewRegistry())
	rec := &recordedTranscript{}
	h := NewHandler(settings, store.NewMemory(), WithClock(clk), WithMetrics(m), WithTranscript(rec))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	s, err := signer.New(testAgent, testSecret, clk)
	if err != nil {
		t.Fatalf("signer.New failed: %v", err)
	}
	return &stub{handler: h, transcript: rec, clock: clk, metrics: m, server: srv, client: client.New(srv.URL, s)}
}

func TestDeployEndpoints(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)
	ctx := context.Background()

	if err := st.client.ValidateToken(ctx); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	styling, err := st.client.FetchStyling(ctx)
	if err != nil {
		t.Fatalf("FetchStyling failed: %v", err)
	}
	if styling["primary_color"] != "#ff0000" {
		t.Errorf("primary_color = %v", styling["primary_color"])
	}
	if got := st.metrics.RequestCount("validate", metrics.OutcomeOK); got != 1 {
		t.Errorf("validate ok count = %v, want 1", got)
	}
}

func TestRejectsBadSignatures(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)

	tests := []struct {
		name  string
		agent string
		token string
		sig   func(ts string) string
		ts    string
	}{
		{name: "unknown agent", agent: "other", token: testSecret, ts: "1700000000"},
		{name: "wrong token", agent: testAgent, token: "abcd", ts: "1700000000"},
		{name: "bad sig", agent: testAgent, token: testSecret, ts: "1700000000",
			sig: func(string) string { return strings.Repeat("0", 64) }},
		{name: "stale ts", agent: testAgent, token: testSecret, ts: "1699990000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, _ := signer.Sign(testSecret, tt.ts, tt.agent)
			if tt.sig != nil {
				sig = tt.sig(tt.ts)
			}
			url := st.server.URL + client.PathValidateToken +
				"?agent_id=" + tt.agent + "&token=" + tt.token + "&ts=" + tt.ts + "&sig=" + sig
			resp, err := http.Get(url)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func mustChat(t *testing.T, st *stub, sessionID, message string) *client.ChatReply {
	t.Helper()
	reply, err := st.client.SendChat(context.Background(), sessionID, message)
	if err != nil {
		t.Fatalf("SendChat(%q) failed: %v", message, err)
	}
	return reply
}

func TestChatIssuesSessionAndRotatesIdleThreads(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)

	first := mustChat(t, st, "", "hello")
	if !strings.HasPrefix(first.SessionID, "srv_") {
		t.Errorf("SessionID = %q, want srv_ prefix", first.SessionID)
	}
	if first.RotatedSessionID != "" {
		t.Errorf("unexpected rotation to %q", first.RotatedSessionID)
	}
	if first.MessageID == "" {
		t.Error("expected a message id")
	}
	if !strings.Contains(first.Text, "**hello**") {
		t.Errorf("reply does not echo the message: %q", first.Text)
	}
	sources := render.ExtractSources(first.Text)
	if len(sources) != 1 || sources[0] != (domain.Source{Index: 1, Title: "contentIQ docs", URL: docsURL}) {
		t.Errorf("sources = %+v", sources)
	}

	st.clock.Advance(time.Minute)
	second := mustChat(t, st, first.SessionID, "again")
	if second.SessionID != first.SessionID {
		t.Errorf("SessionID = %q, want %q", second.SessionID, first.SessionID)
	}
	if !strings.Contains(second.Text, "turn 2") {
		t.Errorf("reply does not count turns: %q", second.Text)
	}

	st.clock.Advance(6 * time.Minute)
	third := mustChat(t, st, first.SessionID, "later")
	if third.RotatedSessionID == "" || third.RotatedSessionID == first.SessionID {
		t.Errorf("RotatedSessionID = %q, want a new id", third.RotatedSessionID)
	}
	if got := st.metrics.RotationCount("header"); got != 1 {
		t.Errorf("header rotations = %v, want 1", got)
	}
}

func TestChatAdoptsClientSessionIDs(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)

	reply := mustChat(t, st, "session_1_abc", "hello")
	if reply.SessionID != "session_1_abc" {
		t.Errorf("SessionID = %q", reply.SessionID)
	}
	if reply.RotatedSessionID != "" {
		t.Errorf("unexpected rotation to %q", reply.RotatedSessionID)
	}
}

func TestChatDoubleEncodedReplyIsUnwrapped(t *testing.T) {
	t.Parallel()
	st := newStub(t, func(s *Settings) { s.DoubleEncode = true })

	reply := mustChat(t, st, "", "hello")
	if !strings.HasPrefix(reply.Raw, `{"assistant":`) {
		t.Errorf("Raw = %q, want a JSON object", reply.Raw)
	}
	if !strings.HasPrefix(reply.Text, "You said: **hello**") {
		t.Errorf("Text = %q", reply.Text)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)

	_, err := st.client.SendChat(context.Background(), "", "   ")
	if code, ok := client.IsStatusError(err); !ok || code != http.StatusBadRequest {
		t.Fatalf("err = %v, want status 400", err)
	}
}

func TestFeedbackIsStored(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)
	ctx := context.Background()

	reply := mustChat(t, st, "", "hello")
	if err := st.client.SendFeedback(ctx, reply.SessionID, reply.MessageID, domain.FeedbackHelpful); err != nil {
		t.Fatalf("SendFeedback failed: %v", err)
	}

	resp, err := http.Get(st.server.URL + "/api/widget/feedback/" + reply.MessageID)
	if err != nil {
		t.Fatalf("GET feedback failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var rec FeedbackRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.FeedbackType != domain.FeedbackHelpful {
		t.Errorf("FeedbackType = %q", rec.FeedbackType)
	}
	if want := domain.ThreadID(testAgent, reply.SessionID); rec.ThreadID != want {
		t.Errorf("ThreadID = %q, want %q", rec.ThreadID, want)
	}
	if got := st.metrics.FeedbackCount("helpful", metrics.OutcomeOK); got != 1 {
		t.Errorf("helpful ok count = %v, want 1", got)
	}
}

func TestFeedbackRejections(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)
	ctx := context.Background()

	err := st.client.SendFeedback(ctx, "s", "unknown", domain.FeedbackNeutral)
	if code, ok := client.IsStatusError(err); !ok || code != http.StatusNotFound {
		t.Fatalf("err = %v, want status 404", err)
	}

	s, err := signer.New(testAgent, testSecret, st.clock)
	if err != nil {
		t.Fatalf("signer.New failed: %v", err)
	}
	auth, err := s.BuildAuth()
	if err != nil {
		t.Fatalf("BuildAuth failed: %v", err)
	}
	body, _ := json.Marshal(map[string]string{
		"agent_id": auth.AgentID, "token": auth.Token, "ts": auth.TS, "sig": auth.Sig,
		"message_id": "m1", "feedback_type": "meh",
	})
	resp, err := http.Post(st.server.URL+client.PathFeedback, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscriptRecordsTurns(t *testing.T) {
	t.Parallel()
	st := newStub(t, nil)

	reply := mustChat(t, st, "", "hello")
	if err := st.client.SendFeedback(context.Background(), reply.SessionID, reply.MessageID, domain.FeedbackHelpful); err != nil {
		t.Fatalf("SendFeedback failed: %v", err)
	}

	st.clock.Advance(6 * time.Minute)
	mustChat(t, st, reply.SessionID, "again")

	want := []string{
		transcript.EventUserMessage,
		transcript.EventAssistantMessage,
		transcript.EventFeedback,
		transcript.EventRotation,
		transcript.EventUserMessage,
		transcript.EventAssistantMessage,
	}
	if got := st.transcript.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}
