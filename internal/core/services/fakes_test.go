package services

import (
	"context"
	"dmchat/internal/app/registry"
	"dmchat/internal/core/contracts"
	"dmchat/internal/core/domain"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var errStoreDown = errors.New("store unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient records every event it is sent.
type fakeClient struct {
	id     string
	mu     sync.Mutex
	events []domain.Envelope
	closed bool
}

func newFakeClient() *fakeClient { return &fakeClient{id: uuid.NewString()} }

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return contracts.ErrClientClosed
	}
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.events = append(c.events, env)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) Events(name string) []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Filter(c.events, func(e domain.Envelope, _ int) bool { return e.Event == name })
}

func (c *fakeClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

func (c *fakeClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeUsers is an in-memory UserRepository with per-user write failures
// and one-shot write delays.
type fakeUsers struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	failFor  map[string]bool
	delayFor map[string]time.Duration
	lastSeen map[string]time.Time
	applied  map[string][]time.Time // write arguments in arrival order
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:    make(map[string]*domain.User),
		failFor:  make(map[string]bool),
		delayFor: make(map[string]time.Duration),
		lastSeen: make(map[string]time.Time),
		applied:  make(map[string][]time.Time),
	}
}

func (f *fakeUsers) CreateUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUsers) ListUsers(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.MapToSlice(f.users, func(_ string, u *domain.User) domain.User { return *u }), nil
}

func (f *fakeUsers) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	delay := f.delayFor[id]
	delete(f.delayFor, id)
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return errStoreDown
	}
	f.applied[id] = append(f.applied[id], at)
	if prev, ok := f.lastSeen[id]; ok && prev.After(at) {
		return nil
	}
	f.lastSeen[id] = at
	if u, ok := f.users[id]; ok {
		u.LastSeen = at
	}
	return nil
}

func (f *fakeUsers) Applied(id string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.applied[id]...)
}

// DelayNext holds the next write for id by d.
func (f *fakeUsers) DelayNext(id string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delayFor[id] = d
}

func (f *fakeUsers) Fail(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[id] = true
}

func (f *fakeUsers) LastSeenOf(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.lastSeen[id]
	return at, ok
}

// fakeMessages is an in-memory MessageRepository.
type fakeMessages struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	fail     bool
	afterGet func(id string) // runs once a lookup has returned
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{messages: make(map[string]*domain.Message)}
}

func (f *fakeMessages) CreateMessage(_ context.Context, m *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	cp := *m
	f.messages[m.ID] = &cp
	return nil
}

func (f *fakeMessages) GetMessageByID(_ context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	m, ok := f.messages[id]
	var cp domain.Message
	if ok {
		cp = *m
	}
	hook := f.afterGet
	f.mu.Unlock()
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	if hook != nil {
		hook(id)
	}
	return &cp, nil
}

func (f *fakeMessages) ListConversation(_ context.Context, a, b string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := lo.FilterMap(lo.Values(f.messages), func(m *domain.Message, _ int) (domain.Message, bool) {
		ok := (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
		return *m, ok
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeMessages) MarkSeen(_ context.Context, senderID, receiverID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errStoreDown
	}
	var n int64
	for _, m := range f.messages {
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.Seen {
			m.Seen = true
			m.SeenAt = lo.ToPtr(at)
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) FilterOwned(_ context.Context, ids []string, senderID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Filter(ids, func(id string, _ int) bool {
		m, ok := f.messages[id]
		return ok && m.SenderID == senderID
	}), nil
}

func (f *fakeMessages) DeleteMessage(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.messages[id]; !ok {
		return domain.ErrMessageNotFound
	}
	delete(f.messages, id)
	return nil
}

func (f *fakeMessages) DeleteMessages(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []string
	for _, id := range ids {
		if _, ok := f.messages[id]; ok {
			delete(f.messages, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (f *fakeMessages) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeChats is an in-memory UserChatRepository.
type fakeChats struct {
	mu    sync.Mutex
	lists map[string]domain.UserChat
}

func newFakeChats() *fakeChats {
	return &fakeChats{lists: make(map[string]domain.UserChat)}
}

func (f *fakeChats) GetUserChats(_ context.Context, userID string) (*domain.UserChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uc, ok := f.lists[userID]
	if !ok {
		return nil, domain.ErrUserChatNotFound
	}
	uc.Chats = append([]domain.ChatPartner(nil), uc.Chats...)
	return &uc, nil
}

func (f *fakeChats) SaveUserChats(_ context.Context, uc *domain.UserChat, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[uc.UserID] = domain.UserChat{UserID: uc.UserID, Chats: append([]domain.ChatPartner(nil), uc.Chats...)}
	return nil
}

// fixture wires the services around a running loop.
type fixture struct {
	loop     *registry.Loop
	registry *registry.Registry
	users    *fakeUsers
	messages *fakeMessages
	presence *PresenceService
	message  *MessageService
	typing   *TypingService
	manager  *ManagerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := discardLogger()
	loop := registry.NewLoop(log, 64)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	reg := registry.NewRegistry()
	users := newFakeUsers()
	messages := newFakeMessages()
	presence := NewPresenceService(log, loop, reg, users, nil, time.Second)
	message := NewMessageService(log, loop, reg, messages, users)
	typing := NewTypingService(log, loop, reg)
	return &fixture{
		loop:     loop,
		registry: reg,
		users:    users,
		messages: messages,
		presence: presence,
		message:  message,
		typing:   typing,
		manager:  NewManagerService(log, presence, message, typing),
	}
}

// settle waits for pending last-seen writes and for the loop to run
// every continuation they posted.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	f.presence.Wait()
	if err := f.loop.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("loop call: %v", err)
	}
}

func (f *fixture) connect(t *testing.T, userID string) *fakeClient {
	t.Helper()
	c := newFakeClient()
	if err := f.presence.Register(context.Background(), userID, c); err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	f.settle(t)
	return c
}

func decodeData[T any](t *testing.T, env domain.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", env.Event, err)
	}
	return v
}
