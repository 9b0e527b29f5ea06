package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clementus360/clinic-assistant/conversation"
	"clementus360/clinic-assistant/types"
	"clementus360/clinic-assistant/usage"
)

type recordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Prefer        string
	Authorization string
	APIKey        string
	Body          map[string]interface{}
}

type tokenKey struct{}

func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

type cannedResponse struct {
	status int
	body   string
}

// restServer is a PostgREST stand-in answering canned bodies keyed by
// "METHOD /path".
type restServer struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]cannedResponse
}

func newRESTServer(t *testing.T) (*restServer, *Clients) {
	t.Helper()
	rs := &restServer{responses: map[string]cannedResponse{}}
	srv := httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(srv.Close)
	clients, err := NewClients(srv.URL, "test-key", tokenFrom)
	require.NoError(t, err)
	return rs, clients
}

func (rs *restServer) respond(method, path string, status int, body string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.responses[method+" "+path] = cannedResponse{status: status, body: body}
}

func (rs *restServer) last() recordedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.requests[len(rs.requests)-1]
}

func (rs *restServer) all() []recordedRequest {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]recordedRequest(nil), rs.requests...)
}

func (rs *restServer) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	req := recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Prefer:        r.Header.Get("Prefer"),
		Authorization: r.Header.Get("Authorization"),
		APIKey:        r.Header.Get("apikey"),
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &req.Body)
	}

	rs.mu.Lock()
	rs.requests = append(rs.requests, req)
	resp, ok := rs.responses[r.Method+" "+r.URL.Path]
	rs.mu.Unlock()

	if !ok {
		resp = cannedResponse{status: http.StatusOK, body: "[]"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func TestSessionStore_CreateSession(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodPost, "/rest/v1/chat_sessions", http.StatusCreated,
		`[{"id":"s1","user_id":"u1","title":"Intake","category":null,
		   "created_at":"2025-03-01T09:00:00.123456+00:00","last_message_at":"2025-03-01T09:00:00.123456+00:00"}]`)

	session, err := NewSessionStore(client, "u1").CreateSession(context.Background(), "Intake")
	require.NoError(t, err)

	assert.Equal(t, "s1", session.ID)
	assert.Equal(t, "Intake", session.Title)
	assert.Empty(t, session.Category)
	assert.NotNil(t, session.Messages)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 123456000, time.UTC), session.CreatedAt.UTC())

	req := rs.last()
	assert.Equal(t, "u1", req.Body["user_id"])
	assert.Equal(t, "Intake", req.Body["title"])
	assert.NotContains(t, req.Body, "created_at")
	assert.Contains(t, req.Prefer, "return=representation")
}

func TestSessionStore_ListSessions(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodGet, "/rest/v1/chat_sessions", http.StatusOK, `[
		{"id":"s2","user_id":"u1","title":"Recent","category":"Cardiology",
		 "created_at":"2025-03-02T10:00:00+00:00","last_message_at":"2025-03-02T10:05:00+00:00",
		 "chat_messages":[
			{"id":"m1","session_id":"s2","user_id":"u1","content":"hi","is_ai":false,"created_at":"2025-03-02T10:04:00+00:00"},
			{"id":"m2","session_id":"s2","user_id":"u1","content":"hello","is_ai":true,"created_at":"2025-03-02T10:05:00+00:00"}]},
		{"id":"s1","user_id":"u1","title":"Old","category":null,
		 "created_at":"2025-03-01T09:00:00+00:00","last_message_at":null,"chat_messages":[]}]`)

	sessions, err := NewSessionStore(client, "u1").ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, "Cardiology", sessions[0].Category)
	require.Len(t, sessions[0].Messages, 2)
	assert.True(t, sessions[0].Messages[1].IsAI)
	assert.Equal(t, "s1", sessions[1].ID)
	assert.True(t, sessions[1].LastMessageAt.IsZero())
	assert.Empty(t, sessions[1].Messages)

	req := rs.last()
	assert.Equal(t, "*,chat_messages(*)", req.Query.Get("select"))
	assert.Equal(t, "eq.u1", req.Query.Get("user_id"))
	assert.Equal(t, "last_message_at.desc.nullslast", req.Query.Get("order"))
	assert.Equal(t, "created_at.asc.nullslast", req.Query.Get("chat_messages.order"))
}

func TestSessionStore_Messages(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodPost, "/rest/v1/chat_messages", http.StatusCreated,
		`[{"id":"m9","session_id":"s1","user_id":"u1","content":"dose?","is_ai":false,"created_at":"2025-03-01T09:01:00+00:00"}]`)
	store := NewSessionStore(client, "u1")

	msg, err := store.InsertMessage(context.Background(), "s1", "dose?", false)
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "dose?", msg.Content)

	req := rs.last()
	assert.Equal(t, "s1", req.Body["session_id"])
	assert.Equal(t, false, req.Body["is_ai"])

	messages, err := store.ListMessages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, messages)
	req = rs.last()
	assert.Equal(t, "eq.s1", req.Query.Get("session_id"))
	assert.Equal(t, "created_at.asc.nullslast", req.Query.Get("order"))
}

func TestSessionStore_Updates(t *testing.T) {
	rs, client := newRESTServer(t)
	store := NewSessionStore(client, "u1")
	ctx := context.Background()

	rs.respond(http.MethodPatch, "/rest/v1/chat_sessions", http.StatusOK, `[{"id":"s1","title":"x"}]`)
	require.NoError(t, store.UpdateSessionCategory(ctx, "s1", "Oncology"))
	req := rs.last()
	assert.Equal(t, "Oncology", req.Body["category"])
	assert.Equal(t, "eq.s1", req.Query.Get("id"))
	assert.Equal(t, "eq.u1", req.Query.Get("user_id"))

	require.NoError(t, store.UpdateSessionCategory(ctx, "s1", ""))
	assert.Contains(t, rs.last().Body, "category")
	assert.Nil(t, rs.last().Body["category"])

	require.NoError(t, store.UpdateSessionTitle(ctx, "s1", "Renamed"))
	assert.Equal(t, "Renamed", rs.last().Body["title"])

	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, store.UpdateSessionLastMessageAt(ctx, "s1", at))
	assert.Equal(t, "2025-03-01T09:30:00Z", rs.last().Body["last_message_at"])

	rs.respond(http.MethodPatch, "/rest/v1/chat_sessions", http.StatusOK, `[]`)
	err := store.UpdateSessionTitle(ctx, "missing", "x")
	assert.ErrorIs(t, err, conversation.ErrSessionNotFound)
}

func TestSessionStore_DeleteSession(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodDelete, "/rest/v1/chat_messages", http.StatusNoContent, ``)
	rs.respond(http.MethodDelete, "/rest/v1/chat_sessions", http.StatusOK, `[{"id":"s1"}]`)

	require.NoError(t, NewSessionStore(client, "u1").DeleteSession(context.Background(), "s1"))

	requests := rs.all()
	require.Len(t, requests, 2)
	assert.Equal(t, "/rest/v1/chat_messages", requests[0].Path)
	assert.Equal(t, "eq.s1", requests[0].Query.Get("session_id"))
	assert.Equal(t, "/rest/v1/chat_sessions", requests[1].Path)
}

func TestSessionStore_RemoteErrors(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodGet, "/rest/v1/chat_sessions", http.StatusBadRequest,
		`{"code":"42P01","message":"relation \"chat_sessions\" does not exist"}`)
	rs.respond(http.MethodPost, "/rest/v1/chat_messages", http.StatusForbidden,
		`{"code":"42501","message":"permission denied"}`)
	store := NewSessionStore(client, "u1")

	_, err := store.ListSessions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	_, err = store.InsertMessage(context.Background(), "s1", "hi", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestSessionStore_CancelledContext(t *testing.T) {
	rs, client := newRESTServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSessionStore(client, "u1").ListSessions(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rs.all())
}

func TestSessionStore_WithConversationStore(t *testing.T) {
	rs, client := newRESTServer(t)
	rs.respond(http.MethodPost, "/rest/v1/chat_sessions", http.StatusCreated,
		`[{"id":"s1","user_id":"u1","title":"New Chat","created_at":"2025-03-01T09:00:00+00:00","last_message_at":"2025-03-01T09:00:00+00:00"}]`)
	rs.respond(http.MethodPost, "/rest/v1/chat_messages", http.StatusCreated,
		`[{"id":"m1","session_id":"s1","user_id":"u1","content":"hi","is_ai":false,"created_at":"2025-03-01T09:01:00+00:00"}]`)
	rs.respond(http.MethodPatch, "/rest/v1/chat_sessions", http.StatusOK, `[{"id":"s1"}]`)

	store := conversation.NewStore("u1", NewSessionStore(client, "u1"))
	id, err := store.CreateSession(context.Background(), "New Chat")
	require.NoError(t, err)
	_, err = store.AppendMessage(context.Background(), id, "hi", false)
	require.NoError(t, err)

	session, ok := store.Session(id)
	require.True(t, ok)
	require.Len(t, session.Messages, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 1, 0, 0, time.UTC), session.LastMessageAt.UTC())

	last := rs.last()
	assert.Equal(t, http.MethodPatch, last.Method)
	assert.Contains(t, last.Body, "last_message_at")
}

func TestUsageStore(t *testing.T) {
	rs, client := newRESTServer(t)
	store := NewUsageStore(client)
	ctx := context.Background()

	_, err := store.GetUsage(ctx, "u1")
	assert.ErrorIs(t, err, usage.ErrNoRecord)

	rs.respond(http.MethodGet, "/rest/v1/user_usage", http.StatusOK,
		`[{"user_id":"u1","queries_used":4,"words_used":120,"subscription_tier":"silver"}]`)
	record, err := store.GetUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.TierSilver, record.SubscriptionTier)
	assert.EqualValues(t, 4, record.QueriesUsed)

	rs.respond(http.MethodPost, "/rest/v1/rpc/increment_usage", http.StatusNoContent, ``)
	require.NoError(t, store.IncrementUsage(ctx, "u1", 42))
	req := rs.last()
	assert.Equal(t, "u1", req.Body["p_user_id"])
	assert.EqualValues(t, 42, req.Body["p_word_count"])

	rs.respond(http.MethodPost, "/rest/v1/rpc/increment_usage", http.StatusNotFound,
		`{"code":"PGRST202","message":"Could not find the function public.increment_usage"}`)
	err = store.IncrementUsage(ctx, "u1", 1)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "PGRST202"))
}

func TestClients_ForwardCallerToken(t *testing.T) {
	rs, clients := newRESTServer(t)
	store := NewSessionStore(clients, "u1")

	_, err := store.ListSessions(withToken(context.Background(), "caller-jwt"))
	require.NoError(t, err)
	req := rs.last()
	assert.Equal(t, "Bearer caller-jwt", req.Authorization)
	assert.Equal(t, "test-key", req.APIKey)

	_, err = store.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", rs.last().Authorization)

	_, err = NewClients("", "key", nil)
	assert.Error(t, err)
}

func TestUsageStore_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	clients, err := NewClients(srv.URL, "test-key", nil)
	require.NoError(t, err)
	srv.Close()

	err = NewUsageStore(clients).IncrementUsage(context.Background(), "u1", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc increment_usage failed")
}
