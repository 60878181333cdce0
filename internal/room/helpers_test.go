package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"studyroom-relay/internal/models"
	"studyroom-relay/internal/storage"
)

type fakeConn struct {
	id string

	mu            sync.Mutex
	frames        []models.Frame
	closed        bool
	closeCode     int
	framesAtClose int
	failSend      bool
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(f models.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.failSend {
		return errors.New("send buffer full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.framesAtClose = len(c.frames)
}

func (c *fakeConn) state() (closed bool, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

func (c *fakeConn) raw() []models.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// received decodes every text frame the connection got.
func (c *fakeConn) received(t *testing.T) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for _, f := range c.raw() {
		if f.Binary {
			continue
		}
		var env models.Envelope
		if err := json.Unmarshal(f.Data, &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// ofType returns the received envelopes of typ.
func (c *fakeConn) ofType(t *testing.T, typ string) []models.Envelope {
	t.Helper()
	var out []models.Envelope
	for _, env := range c.received(t) {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingStore fails every Put, and every Get while getErr is set.
type failingStore struct {
	mu     sync.Mutex
	inner  *storage.MemoryStore
	getErr error
	putErr error
	puts   int
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, key)
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.puts++
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, key, value)
}

func newTestRoom(t *testing.T, store storage.Store, clk *clock) *Room {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	if clk == nil {
		clk = newClock()
	}
	r := New("test-room", store, Options{Now: clk.Now}, nil)
	t.Cleanup(r.Stop)
	return r
}

func attach(t *testing.T, r *Room, c Conn) {
	t.Helper()
	if err := r.Attach(context.Background(), c); err != nil {
		t.Fatalf("attach %s: %v", c.ID(), err)
	}
}

func sendJSON(t *testing.T, r *Room, c Conn, v interface{}) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := r.Deliver(c, models.TextFrame(b)); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

// settle waits until every event queued so far has been handled.
func settle(t *testing.T, r *Room) []models.StudySession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sessions, err := r.Sessions(ctx)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	return sessions
}

func msg(typ, userID, username string, data interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"type":      typ,
		"userId":    userID,
		"username":  username,
		"timestamp": "2026-03-01T09:00:00.000Z",
	}
	if data != nil {
		m["data"] = data
	}
	return m
}

func join(t *testing.T, r *Room, c Conn, userID, username string) {
	t.Helper()
	sendJSON(t, r, c, msg(models.TypePresence, userID, username, map[string]string{"status": models.PresenceJoined}))
}

func dataOf(t *testing.T, env models.Envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s data: %v", env.Type, err)
	}
}
