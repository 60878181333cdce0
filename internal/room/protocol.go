package room

import (
	"encoding/json"

	"studyroom-relay/internal/models"
)

// message is one decoded inbound frame. Anything the room does not
// understand decodes to relay and is forwarded verbatim.
type message interface {
	label() string
}

type relay struct{}

// ignored is a recognized message whose preconditions fail at decode time
// (unreadable data, no userId, no target). It has no effect and is never
// relayed.
type ignored struct{ kind string }

type presenceJoin struct {
	userID   string
	username string
}

type sessionStart struct {
	userID   string
	username string
	data     models.SessionStartData
}

type sessionUpdate struct {
	userID string
	data   models.SessionUpdateData
}

type sessionEnd struct {
	userID      string
	elapsedTime *int64
}

type sessionListRequest struct{}

type moderation struct {
	action     string // models.ActionKick or models.ActionBan
	adminID    string
	adminName  string
	target     string
	reason     string
	permanent  bool
	durationMs int64
}

func (relay) label() string              { return "relay" }
func (m ignored) label() string          { return m.kind }
func (presenceJoin) label() string       { return models.TypePresence }
func (sessionStart) label() string       { return models.TypeSessionStart }
func (sessionUpdate) label() string      { return models.TypeSessionUpdate }
func (sessionEnd) label() string         { return models.TypeSessionEnd }
func (sessionListRequest) label() string { return models.TypeSessionListRequest }
func (moderation) label() string         { return models.TypeAdminAction }

// decode never fails. Binary, non-JSON and unknown types are relayed; a
// known type with an unreadable payload is ignored.
func decode(f models.Frame) message {
	if f.Binary {
		return relay{}
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(f.Data, &head); err != nil || !recognized(head.Type) {
		return relay{}
	}
	var env models.Envelope
	if err := json.Unmarshal(f.Data, &env); err != nil {
		return ignored{kind: head.Type}
	}

	switch env.Type {
	case models.TypePresence:
		var data models.PresenceData
		if !decodeData(env.Data, &data) {
			return ignored{kind: env.Type}
		}
		if data.Status != models.PresenceJoined {
			return relay{}
		}
		if env.UserID == "" {
			return ignored{kind: env.Type}
		}
		return presenceJoin{userID: env.UserID, username: env.Username}

	case models.TypeSessionStart:
		var data models.SessionStartData
		if !decodeData(env.Data, &data) {
			return ignored{kind: env.Type}
		}
		if env.UserID == "" {
			return ignored{kind: env.Type}
		}
		return sessionStart{userID: env.UserID, username: env.Username, data: data}

	case models.TypeSessionUpdate:
		var data models.SessionUpdateData
		if !decodeData(env.Data, &data) {
			return ignored{kind: env.Type}
		}
		if env.UserID == "" {
			return ignored{kind: env.Type}
		}
		return sessionUpdate{userID: env.UserID, data: data}

	case models.TypeSessionEnd:
		var data models.SessionEndData
		if !decodeData(env.Data, &data) {
			return ignored{kind: env.Type}
		}
		if env.UserID == "" {
			return ignored{kind: env.Type}
		}
		return sessionEnd{userID: env.UserID, elapsedTime: data.ElapsedTime.Int64()}

	case models.TypeSessionListRequest:
		return sessionListRequest{}

	case models.TypeAdminAction:
		var data models.AdminActionData
		if !decodeData(env.Data, &data) {
			return ignored{kind: env.Type}
		}
		if data.Action != models.ActionKick && data.Action != models.ActionBan {
			return relay{}
		}
		if data.TargetUserID == "" {
			return ignored{kind: env.Type}
		}
		return moderation{
			action:     data.Action,
			adminID:    env.UserID,
			adminName:  env.Username,
			target:     data.TargetUserID,
			reason:     data.Reason,
			permanent:  data.Permanent,
			durationMs: int64(data.DurationMs),
		}
	}

	return relay{}
}

func recognized(typ string) bool {
	switch typ {
	case models.TypePresence, models.TypeSessionStart, models.TypeSessionUpdate,
		models.TypeSessionEnd, models.TypeSessionListRequest, models.TypeAdminAction:
		return true
	}
	return false
}

// decodeData treats a missing data field as an empty object.
func decodeData(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}
