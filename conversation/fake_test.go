package conversation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"clementus360/clinic-assistant/types"
)

var errRemote = errors.New("remote unavailable")

// fakeDurable is an in-memory DurableStore with a deterministic clock and
// per-operation failure injection.
type fakeDurable struct {
	mu       sync.Mutex
	clock    time.Time
	seq      int
	sessions map[string]*types.Session
	calls    map[string]int
	fail     map[string]error
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{
		clock:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		sessions: make(map[string]*types.Session),
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
}

func (f *fakeDurable) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeDurable) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *fakeDurable) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeDurable) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDurable) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeDurable) remote(id string) types.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Clone()
}

func (f *fakeDurable) CreateSession(_ context.Context, title string) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("create"); err != nil {
		return types.Session{}, err
	}
	f.seq++
	now := f.tick()
	session := &types.Session{
		ID:            fmt.Sprintf("s%d", f.seq),
		Title:         title,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	f.sessions[session.ID] = session
	return session.Clone(), nil
}

func (f *fakeDurable) ListSessions(_ context.Context) ([]types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	out := make([]types.Session, 0, len(f.sessions))
	for _, session := range f.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (f *fakeDurable) ListMessages(_ context.Context, sessionID string) ([]types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("messages"); err != nil {
		return nil, err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone().Messages, nil
}

func (f *fakeDurable) InsertMessage(_ context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("insert"); err != nil {
		return types.Message{}, err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return types.Message{}, ErrSessionNotFound
	}
	f.seq++
	msg := types.Message{
		ID:        fmt.Sprintf("m%d", f.seq),
		SessionID: sessionID,
		Content:   content,
		IsAI:      isAI,
		CreatedAt: f.tick(),
	}
	session.Messages = append(session.Messages, msg)
	return msg, nil
}

func (f *fakeDurable) UpdateSessionLastMessageAt(_ context.Context, sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("touch"); err != nil {
		return err
	}
	f.sessions[sessionID].LastMessageAt = at
	return nil
}

func (f *fakeDurable) UpdateSessionCategory(_ context.Context, sessionID, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("category"); err != nil {
		return err
	}
	f.sessions[sessionID].Category = category
	return nil
}

func (f *fakeDurable) UpdateSessionTitle(_ context.Context, sessionID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("title"); err != nil {
		return err
	}
	f.sessions[sessionID].Title = title
	return nil
}

func (f *fakeDurable) DeleteSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("delete"); err != nil {
		return err
	}
	delete(f.sessions, sessionID)
	return nil
}

// txDurable adds a single-write append on top of fakeDurable.
type txDurable struct {
	*fakeDurable
}

func (t txDurable) AppendMessage(ctx context.Context, sessionID, content string, isAI bool) (types.Message, error) {
	msg, err := t.InsertMessage(ctx, sessionID, content, isAI)
	if err != nil {
		return msg, err
	}
	t.mu.Lock()
	t.calls["tx_append"]++
	t.sessions[sessionID].LastMessageAt = msg.CreatedAt
	t.mu.Unlock()
	return msg, nil
}

// stubGenerator answers every prompt with reply, or fails with err.
type stubGenerator struct {
	reply   string
	err     error
	prompts []string
	onCall  func()
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.onCall != nil {
		g.onCall()
	}
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}
