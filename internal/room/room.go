// Package room implements the per-room actor that relays websocket traffic,
// tracks presence and live study sessions, and enforces kicks and bans.
//
// Each Room owns its state from a single goroutine. Connections, the
// transport adapter and the registry talk to it only through its inbox, so
// every room observes one total order of events.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"studyroom-relay/internal/logger"
	"studyroom-relay/internal/metrics"
	"studyroom-relay/internal/models"
	"studyroom-relay/internal/storage"
)

// ErrRoomClosed is returned when a room stopped (evicted or shut down)
// before it accepted the event. Callers resolve the room again and retry.
var ErrRoomClosed = errors.New("room: closed")

// Conn is a live connection as seen by a room. Send must not block; Close
// must deliver everything already sent before the close frame.
type Conn interface {
	ID() string
	Send(f models.Frame) error
	Close(code int, reason string)
}

type Options struct {
	// Now is the room clock used for ban expiry and session timestamps.
	Now func() time.Time
	// IdleTimeout evicts a room that has had no connections for this long. Zero disables eviction.
	IdleTimeout    time.Duration
	InboxSize      int
	StorageTimeout time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 256
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

type event interface{}

type attachEvent struct {
	conn Conn
	ack  chan struct{}
}

type frameEvent struct {
	conn  Conn
	frame models.Frame
}

type detachEvent struct {
	conn Conn
}

type sessionsQuery struct {
	reply chan []models.StudySession
}

// identity is what a connection announced with presence/joined.
type identity struct {
	userID   string
	username string
	conn     Conn
}

type userEntry struct {
	username string
	count    int
}

type Room struct {
	id      string
	store   storage.Store
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
	onIdle  func(*Room)

	inbox    chan event
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Owned by the run goroutine.
	conns          map[string]Conn     // active broadcast set
	identities     map[string]identity // conn id -> announced user
	users          map[string]*userEntry
	bans           map[string]models.BanRecord
	bansLoaded     bool
	sessions       map[string]*models.StudySession
	sessionsLoaded bool
}

// New starts a room actor. onIdle, when set, is called from the room
// goroutine right before an idle room stops.
func New(id string, store storage.Store, opts Options, onIdle func(*Room)) *Room {
	opts = opts.withDefaults()
	r := &Room{
		id:         id,
		store:      store,
		opts:       opts,
		log:        opts.Logger.With("room", id),
		metrics:    opts.Metrics,
		onIdle:     onIdle,
		inbox:      make(chan event, opts.InboxSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		conns:      make(map[string]Conn),
		identities: make(map[string]identity),
		users:      make(map[string]*userEntry),
		bans:       make(map[string]models.BanRecord),
		sessions:   make(map[string]*models.StudySession),
	}
	r.metrics.RoomOpened()
	go r.run()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed once the room has stopped handling events.
func (r *Room) Done() <-chan struct{} { return r.done }

// Attach adds c to the room's broadcast set. It returns after the room has
// processed the attach, so frames delivered afterwards are ordered after it.
// On error c is not left in the room.
func (r *Room) Attach(ctx context.Context, c Conn) error {
	ack := make(chan struct{})
	if err := r.submit(ctx, attachEvent{conn: c, ack: ack}); err != nil {
		return err
	}
	select {
	case <-ack:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		// The attach is already queued; the detach lands after it.
		r.Detach(c)
		return ctx.Err()
	}
}

// Deliver queues an inbound frame from c. It blocks while the inbox is full.
func (r *Room) Deliver(c Conn, f models.Frame) error {
	return r.submit(context.Background(), frameEvent{conn: c, frame: f})
}

// Detach tells the room that c is gone. Safe to call on a stopped room.
func (r *Room) Detach(c Conn) {
	_ = r.submit(context.Background(), detachEvent{conn: c})
}

// Sessions returns the live study sessions, loading them from storage first
// if needed.
func (r *Room) Sessions(ctx context.Context) ([]models.StudySession, error) {
	reply := make(chan []models.StudySession, 1)
	if err := r.submit(ctx, sessionsQuery{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop closes every connection with 1001 and waits for the room to exit.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Room) submit(ctx context.Context, ev event) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) run() {
	defer func() {
		r.metrics.RoomClosed()
		close(r.done)
	}()

	var (
		idle  *time.Timer
		idleC <-chan time.Time
	)
	armIdle := func() {
		empty := len(r.conns) == 0 && len(r.identities) == 0
		switch {
		case empty && idle == nil && r.opts.IdleTimeout > 0:
			idle = time.NewTimer(r.opts.IdleTimeout)
			idleC = idle.C
		case !empty && idle != nil:
			idle.Stop()
			idle, idleC = nil, nil
		}
	}
	armIdle()

	for {
		select {
		case ev := <-r.inbox:
			r.handle(ev)
			armIdle()

		case <-idleC:
			r.log.Info("room.evicted", "idle", r.opts.IdleTimeout)
			if r.onIdle != nil {
				r.onIdle(r)
			}
			return

		case <-r.stop:
			if idle != nil {
				idle.Stop()
			}
			r.shutdown()
			return
		}
	}
}

func (r *Room) handle(ev event) {
	switch ev := ev.(type) {
	case attachEvent:
		r.conns[ev.conn.ID()] = ev.conn
		r.metrics.ConnectionOpened()
		r.log.Debug("conn.attached", "conn", ev.conn.ID(), "conns", len(r.conns))
		close(ev.ack)

	case frameEvent:
		// Kicked, banned or undeliverable connections may still have
		// frames in flight; they no longer speak for anyone.
		if _, ok := r.conns[ev.conn.ID()]; !ok {
			return
		}
		r.handleFrame(ev.conn, ev.frame)

	case detachEvent:
		r.handleDetach(ev.conn)

	case sessionsQuery:
		r.ensureSessions()
		ev.reply <- r.sessionList()
	}
}

func (r *Room) handleFrame(c Conn, f models.Frame) {
	msg := decode(f)
	r.metrics.Message(msg.label())

	switch m := msg.(type) {
	case presenceJoin:
		r.handlePresenceJoin(c, m)
	case sessionStart:
		r.handleSessionStart(m)
	case sessionUpdate:
		r.handleSessionUpdate(m)
	case sessionEnd:
		r.handleSessionEnd(m)
	case sessionListRequest:
		r.ensureSessions()
		r.sendTo(c, r.outbound(models.TypeSessionList, "", "", models.SessionListData{Sessions: r.sessionList()}))
	case moderation:
		r.handleModeration(c, m)
	case ignored:
	case relay:
		r.broadcastFrame(f, c)
	}
}

func (r *Room) handleDetach(c Conn) {
	id := c.ID()
	r.dropConn(id)
	r.releaseIdentity(id)
}

// releaseIdentity forgets what connection id announced. The last connection
// of a user broadcasts presence-update/left.
func (r *Room) releaseIdentity(id string) {
	ident, ok := r.identities[id]
	if !ok {
		return
	}
	delete(r.identities, id)

	entry := r.users[ident.userID]
	if entry == nil {
		// Already removed by a kick or ban.
		return
	}
	entry.count--
	if entry.count > 0 {
		return
	}
	delete(r.users, ident.userID)
	r.broadcast(r.outbound(models.TypePresenceUpdate, ident.userID, entry.username,
		models.PresenceData{Status: models.PresenceLeft}), nil)
}

func (r *Room) shutdown() {
	for id, c := range r.conns {
		c.Close(models.CloseGoingAway, "room shutting down")
		r.dropConn(id)
	}
	for id, ident := range r.identities {
		ident.conn.Close(models.CloseGoingAway, "room shutting down")
		delete(r.identities, id)
	}
	r.log.Info("room.stopped")
}

// dropConn removes id from the broadcast set. Presence is left alone; it is
// settled when the connection's detach arrives.
func (r *Room) dropConn(id string) {
	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		r.metrics.ConnectionClosed()
	}
}

func (r *Room) outbound(typ, userID, username string, data interface{}) models.Outbound {
	return models.Outbound{
		Type:      typ,
		UserID:    userID,
		Username:  username,
		Data:      data,
		Timestamp: models.FormatTime(r.opts.Now()),
	}
}

func (r *Room) encode(msg models.Outbound) (models.Frame, bool) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("message.encode", "type", msg.Type, "err", err)
		return models.Frame{}, false
	}
	return models.TextFrame(b), true
}

// broadcast sends msg to every active connection except skip (may be nil).
func (r *Room) broadcast(msg models.Outbound, skip Conn) {
	if f, ok := r.encode(msg); ok {
		r.broadcastFrame(f, skip)
	}
}

func (r *Room) broadcastFrame(f models.Frame, skip Conn) {
	for id, c := range r.conns {
		if skip != nil && id == skip.ID() {
			continue
		}
		r.deliver(id, c, f)
	}
}

func (r *Room) sendTo(c Conn, msg models.Outbound) {
	if f, ok := r.encode(msg); ok {
		r.deliver(c.ID(), c, f)
	}
}

// deliver is best effort: a connection that cannot take the frame is dropped
// from the broadcast set and closed.
func (r *Room) deliver(id string, c Conn, f models.Frame) {
	if err := c.Send(f); err != nil {
		r.log.Debug("conn.send_failed", "conn", id, "err", err)
		r.dropConn(id)
		c.Close(models.CloseInternalError, "delivery failed")
	}
}
