package room

import (
	"fmt"
	"sort"

	"studyroom-relay/internal/models"
)

func (r *Room) handlePresenceJoin(c Conn, m presenceJoin) {
	if ban, ok := r.activeBan(m.userID); ok {
		r.metrics.Moderation("join_rejected")
		r.log.Info("presence.rejected", "user", m.userID, "permanent", ban.Permanent)
		r.sendTo(c, r.outbound(models.TypeAdminAction, "", "", banNotice(m.userID, ban, "")))
		r.dropConn(c.ID())
		c.Close(models.CloseBanned, "banned")
		return
	}

	id := c.ID()
	if prev, ok := r.identities[id]; ok {
		if prev.userID == m.userID {
			if m.username != "" {
				r.identities[id] = identity{userID: m.userID, username: m.username, conn: c}
				r.users[m.userID].username = m.username
			}
			r.sendTo(c, r.roster())
			return
		}
		r.releaseIdentity(id)
	}

	r.identities[id] = identity{userID: m.userID, username: m.username, conn: c}
	if entry := r.users[m.userID]; entry != nil {
		entry.count++
		if m.username != "" {
			entry.username = m.username
		}
	} else {
		r.users[m.userID] = &userEntry{username: m.username, count: 1}
		r.broadcast(r.outbound(models.TypePresenceUpdate, m.userID, m.username,
			models.PresenceData{Status: models.PresenceJoined}), c)
	}
	r.sendTo(c, r.roster())
}

// roster lists every distinct connected user, ordered by user id.
func (r *Room) roster() models.Outbound {
	users := make([]models.RosterEntry, 0, len(r.users))
	for userID, entry := range r.users {
		users = append(users, models.RosterEntry{UserID: userID, Username: entry.username})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return r.outbound(models.TypePresenceRoster, "", "", models.PresenceRosterData{Users: users})
}

func (r *Room) handleModeration(admin Conn, m moderation) {
	r.metrics.Moderation(m.action)

	if m.action == models.ActionKick {
		notice := models.AdminNoticeData{
			Action:       models.ActionKicked,
			TargetUserID: m.target,
			Reason:       m.reason,
			Message:      "You have been removed from this room",
		}
		r.log.Info("moderation.kick", "admin", m.adminID, "target", m.target)
		r.disconnectUser(admin, m, notice, models.CloseKicked, "kicked")
		return
	}

	var ban models.BanRecord
	if m.permanent || m.durationMs <= 0 {
		ban = models.PermanentBan()
	} else {
		ban = models.TemporaryBan(r.opts.Now(), m.durationMs)
	}
	r.ensureBans()
	r.bans[m.target] = ban
	r.persistBans()

	r.log.Info("moderation.ban", "admin", m.adminID, "target", m.target, "permanent", ban.Permanent, "until", ban.Until)
	r.disconnectUser(admin, m, banNotice(m.target, ban, m.reason), models.CloseBanned, "banned")
}

// disconnectUser notifies and closes every connection of m.target, removes
// the user from presence and tells everyone but the admin that they left.
func (r *Room) disconnectUser(admin Conn, m moderation, notice models.AdminNoticeData, code int, reason string) {
	msg := r.outbound(models.TypeAdminAction, m.adminID, m.adminName, notice)
	for id, ident := range r.identities {
		if ident.userID != m.target {
			continue
		}
		if _, active := r.conns[id]; active {
			r.sendTo(ident.conn, msg)
		}
		ident.conn.Close(code, reason)
		r.dropConn(id)
		delete(r.identities, id)
	}

	var username string
	if entry := r.users[m.target]; entry != nil {
		username = entry.username
		delete(r.users, m.target)
	}
	r.broadcast(r.outbound(models.TypePresenceUpdate, m.target, username,
		models.PresenceData{Status: models.PresenceLeft}), admin)
}

func banNotice(userID string, ban models.BanRecord, reason string) models.AdminNoticeData {
	notice := models.AdminNoticeData{
		Action:       models.ActionBanned,
		TargetUserID: userID,
		Reason:       reason,
		Permanent:    ban.Permanent,
	}
	if ban.Permanent {
		notice.Message = "You are permanently banned from this room"
		return notice
	}
	notice.Until = ban.Until
	notice.ExpiresAt = models.FormatTime(ban.Expiry())
	notice.Message = fmt.Sprintf("You are banned from this room until %s", notice.ExpiresAt)
	return notice
}
