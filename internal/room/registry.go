package room

import (
	"context"
	"errors"
	"sync"

	"studyroom-relay/internal/models"
	"studyroom-relay/internal/storage"
)

// ErrRegistryClosed is returned once the registry has been shut down.
var ErrRegistryClosed = errors.New("room: registry closed")

// Registry maps a room id to its single live actor, creating it on first
// reference. It is the only room component guarded by a mutex.
type Registry struct {
	provider storage.Provider
	opts     Options

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewRegistry(provider storage.Provider, opts Options) *Registry {
	return &Registry{
		provider: provider,
		opts:     opts.withDefaults(),
		rooms:    make(map[string]*Room),
	}
}

// Get returns the live room for roomID, starting it if needed. State is
// loaded lazily by the room itself.
func (g *Registry) Get(roomID string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrRegistryClosed
	}
	r := g.rooms[roomID]
	if r != nil {
		select {
		case <-r.done:
			r = nil
		default:
		}
	}
	if r == nil {
		r = New(roomID, g.provider.Open(roomID), g.opts, g.evict)
		g.rooms[roomID] = r
	}
	return r, nil
}

// Attach hands c to the room, retrying if the room is evicted under us.
func (g *Registry) Attach(ctx context.Context, roomID string, c Conn) (*Room, error) {
	for {
		r, err := g.Get(roomID)
		if err != nil {
			return nil, err
		}
		err = r.Attach(ctx, c)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Sessions reads a room's live sessions, retrying across an eviction.
func (g *Registry) Sessions(ctx context.Context, roomID string) ([]models.StudySession, error) {
	for {
		r, err := g.Get(roomID)
		if err != nil {
			return nil, err
		}
		sessions, err := r.Sessions(ctx)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return sessions, err
	}
}

// Len is the number of live rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Close stops every room and refuses new ones.
func (g *Registry) Close() {
	g.mu.Lock()
	g.closed = true
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.rooms = make(map[string]*Room)
	g.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func(r *Room) {
			defer wg.Done()
			r.Stop()
		}(r)
	}
	wg.Wait()
}

// evict runs on the idle room's own goroutine after it stopped taking
// events, so the replacement created by the next Get never overlaps it.
func (g *Registry) evict(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[r.id] == r {
		delete(g.rooms, r.id)
	}
}
