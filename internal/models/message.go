package models

import (
	"encoding/json"
	"time"
)

// Inbound message types.
const (
	TypePresence           = "presence"
	TypeSessionStart       = "session-start"
	TypeSessionUpdate      = "session-update"
	TypeSessionEnd         = "session-end"
	TypeSessionListRequest = "session-list-request"
	TypeAdminAction        = "admin-action"
)

// Server generated message types. session-update and admin-action are reused
// in both directions.
const (
	TypePresenceUpdate = "presence-update"
	TypePresenceRoster = "presence-roster"
	TypeSessionList    = "session-list"
)

// data.action values.
const (
	ActionSessionStarted = "session-started"
	ActionSessionUpdated = "session-updated"
	ActionSessionEnded   = "session-ended"

	ActionKick   = "kick"
	ActionBan    = "ban"
	ActionKicked = "kicked"
	ActionBanned = "banned"
)

const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// WebSocket close codes sent by the relay. Clients must not reconnect after
// CloseKicked or CloseBanned.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseInternalError = 1011
	CloseKicked        = 4001
	CloseBanned        = 4003
)

// Envelope is the JSON object carried by every text frame.
type Envelope struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Outbound is a server generated message. Data is marshalled as-is.
type Outbound struct {
	Type      string      `json:"type"`
	UserID    string      `json:"userId,omitempty"`
	Username  string      `json:"username,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Frame is one websocket message. Binary frames are never interpreted.
type Frame struct {
	Binary bool
	Data   []byte
}

func TextFrame(b []byte) Frame   { return Frame{Data: b} }
func BinaryFrame(b []byte) Frame { return Frame{Binary: true, Data: b} }

type PresenceData struct {
	Status string `json:"status"`
}

type RosterEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type PresenceRosterData struct {
	Users []RosterEntry `json:"users"`
}

type SessionEventData struct {
	Action       string        `json:"action"`
	Session      *StudySession `json:"session,omitempty"`
	FinalSession *StudySession `json:"finalSession,omitempty"`
}

type SessionListData struct {
	Sessions []StudySession `json:"sessions"`
}

// AdminActionData is the inbound admin-action payload.
type AdminActionData struct {
	Action       string      `json:"action"`
	TargetUserID string      `json:"targetUserId"`
	Permanent    bool        `json:"permanent,omitempty"`
	DurationMs   WholeNumber `json:"durationMs,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// AdminNoticeData is sent to the connections of a kicked or banned user, and
// to a banned user attempting to join.
type AdminNoticeData struct {
	Action       string `json:"action"`
	TargetUserID string `json:"targetUserId"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message"`
	Permanent    bool   `json:"permanent,omitempty"`
	Until        int64  `json:"until,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

// FormatTime renders t the way browsers do with Date.toISOString.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
