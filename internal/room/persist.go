package room

import (
	"context"
	"encoding/json"
	"errors"

	"studyroom-relay/internal/models"
	"studyroom-relay/internal/storage"
)

// Storage keys, one whole document each.
const (
	keyBans     = "bans"
	keySessions = "studySessions"
)

// activeBan reports the ban in force for userID. Expired temporary bans are
// dropped from memory here; storage catches up on the next bans write.
func (r *Room) activeBan(userID string) (models.BanRecord, bool) {
	r.ensureBans()

	ban, ok := r.bans[userID]
	if !ok {
		return models.BanRecord{}, false
	}
	if ban.ActiveAt(r.opts.Now()) {
		return ban, true
	}
	delete(r.bans, userID)
	return models.BanRecord{}, false
}

func (r *Room) ensureBans() {
	if r.bansLoaded {
		return
	}
	var stored map[string]models.BanRecord
	if !r.load(keyBans, &stored) {
		return
	}
	pending := len(r.bans) > 0
	for userID, ban := range stored {
		if _, ok := r.bans[userID]; !ok {
			r.bans[userID] = ban
		}
	}
	r.bansLoaded = true
	if pending {
		r.persistBans()
	}
}

func (r *Room) ensureSessions() {
	if r.sessionsLoaded {
		return
	}
	var stored map[string]models.StudySession
	if !r.load(keySessions, &stored) {
		return
	}
	pending := len(r.sessions) > 0
	for userID, s := range stored {
		if !s.Live() {
			continue
		}
		if _, ok := r.sessions[userID]; !ok {
			s := s
			r.sessions[userID] = &s
		}
	}
	r.sessionsLoaded = true
	if pending {
		r.persistSessions()
	}
}

// Writes are held back until the document has been loaded, so a storage
// outage never overwrites what is stored with a partial view.
func (r *Room) persistBans() {
	if !r.bansLoaded {
		return
	}
	r.save(keyBans, r.bans)
}

// persistSessions writes only active and paused sessions.
func (r *Room) persistSessions() {
	if !r.sessionsLoaded {
		return
	}
	live := make(map[string]models.StudySession, len(r.sessions))
	for userID, s := range r.sessions {
		if s.Live() {
			live[userID] = *s
		}
	}
	r.save(keySessions, live)
}

// load reports whether the document is settled: decoded, absent, or corrupt.
// A store failure returns false so the next access retries; anything
// mutated in memory meanwhile wins over what is eventually loaded.
func (r *Room) load(key string, v interface{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.StorageTimeout)
	defer cancel()

	b, err := r.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	if err != nil {
		r.metrics.StorageError("get", key)
		r.log.Error("storage.load", "key", key, "err", err)
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		r.metrics.StorageError("decode", key)
		r.log.Error("storage.decode", "key", key, "err", err)
	}
	return true
}

// save never fails the caller: the in-memory state stays authoritative.
func (r *Room) save(key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		r.log.Error("storage.encode", "key", key, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.StorageTimeout)
	defer cancel()

	if err := r.store.Put(ctx, key, b); err != nil {
		r.metrics.StorageError("put", key)
		r.log.Error("storage.save", "key", key, "err", err)
	}
}
