package models

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

type SessionType string

const (
	SessionFocus SessionType = "focus"
	SessionBreak SessionType = "break"
)

// StudySession is the live record kept per user in a room. Durations are in
// seconds.
type StudySession struct {
	UserID            string        `json:"userId"`
	Username          string        `json:"username"`
	Subject           string        `json:"subject"`
	Goal              string        `json:"goal"`
	StartTime         string        `json:"startTime"`
	Status            SessionStatus `json:"status"`
	Type              SessionType   `json:"type"`
	TargetDuration    *int64        `json:"targetDuration,omitempty"`
	ElapsedTime       int64         `json:"elapsedTime"`
	IsPublic          bool          `json:"isPublic"`
	ProfilePictureURL string        `json:"profilePictureUrl,omitempty"`
	Streak            *int          `json:"streak,omitempty"`
	TotalHours        *float64      `json:"totalHours,omitempty"`
	LastUpdateTime    string        `json:"lastUpdateTime"`
}

// Live reports whether the session survives a reload from storage.
func (s StudySession) Live() bool {
	return s.Status == SessionActive || s.Status == SessionPaused
}

// SessionStartData is the data payload of a session-start message.
type SessionStartData struct {
	Subject           string       `json:"subject"`
	Goal              string       `json:"goal"`
	Type              SessionType  `json:"type"`
	TargetDuration    *WholeNumber `json:"targetDuration,omitempty"`
	IsPublic          bool         `json:"isPublic"`
	ProfilePictureURL string       `json:"profilePictureUrl,omitempty"`
	Streak            *int         `json:"streak,omitempty"`
	TotalHours        *float64     `json:"totalHours,omitempty"`
}

// SessionUpdateData carries only the fields the client wants to change.
type SessionUpdateData struct {
	Status      *SessionStatus `json:"status,omitempty"`
	ElapsedTime *WholeNumber   `json:"elapsedTime,omitempty"`
	Subject     *string        `json:"subject,omitempty"`
	Goal        *string        `json:"goal,omitempty"`
	Type        *SessionType   `json:"type,omitempty"`
}

type SessionEndData struct {
	ElapsedTime *WholeNumber `json:"elapsedTime,omitempty"`
}
