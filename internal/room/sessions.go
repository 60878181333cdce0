package room

import (
	"sort"

	"studyroom-relay/internal/models"
)

// handleSessionStart replaces any previous session of the user.
func (r *Room) handleSessionStart(m sessionStart) {
	r.ensureSessions()

	now := models.FormatTime(r.opts.Now())
	typ := m.data.Type
	if typ == "" {
		typ = models.SessionFocus
	}
	s := &models.StudySession{
		UserID:            m.userID,
		Username:          m.username,
		Subject:           m.data.Subject,
		Goal:              m.data.Goal,
		StartTime:         now,
		Status:            models.SessionActive,
		Type:              typ,
		TargetDuration:    m.data.TargetDuration.Int64(),
		ElapsedTime:       0,
		IsPublic:          m.data.IsPublic,
		ProfilePictureURL: m.data.ProfilePictureURL,
		Streak:            m.data.Streak,
		TotalHours:        m.data.TotalHours,
		LastUpdateTime:    now,
	}
	r.sessions[m.userID] = s
	r.persistSessions()

	snapshot := *s
	r.broadcast(r.outbound(models.TypeSessionUpdate, m.userID, m.username, models.SessionEventData{
		Action:  models.ActionSessionStarted,
		Session: &snapshot,
	}), nil)
}

func (r *Room) handleSessionUpdate(m sessionUpdate) {
	r.ensureSessions()

	s := r.sessions[m.userID]
	if s == nil {
		return
	}
	if m.data.Status != nil {
		s.Status = *m.data.Status
	}
	if m.data.ElapsedTime != nil {
		s.ElapsedTime = int64(*m.data.ElapsedTime)
	}
	if m.data.Subject != nil {
		s.Subject = *m.data.Subject
	}
	if m.data.Goal != nil {
		s.Goal = *m.data.Goal
	}
	if m.data.Type != nil {
		s.Type = *m.data.Type
	}
	s.LastUpdateTime = models.FormatTime(r.opts.Now())
	r.persistSessions()

	snapshot := *s
	r.broadcast(r.outbound(models.TypeSessionUpdate, s.UserID, s.Username, models.SessionEventData{
		Action:  models.ActionSessionUpdated,
		Session: &snapshot,
	}), nil)
}

// handleSessionEnd broadcasts the final snapshot once and forgets the session.
func (r *Room) handleSessionEnd(m sessionEnd) {
	r.ensureSessions()

	s := r.sessions[m.userID]
	if s == nil {
		return
	}
	final := *s
	final.Status = models.SessionCompleted
	if m.elapsedTime != nil {
		final.ElapsedTime = *m.elapsedTime
	}
	final.LastUpdateTime = models.FormatTime(r.opts.Now())

	delete(r.sessions, m.userID)
	r.persistSessions()

	r.broadcast(r.outbound(models.TypeSessionUpdate, final.UserID, final.Username, models.SessionEventData{
		Action:       models.ActionSessionEnded,
		FinalSession: &final,
	}), nil)
}

// sessionList copies the live sessions ordered by start time, then user id.
func (r *Room) sessionList() []models.StudySession {
	out := make([]models.StudySession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
