package room

import (
	"reflect"
	"testing"

	"studyroom-relay/internal/models"
)

func TestDecode(t *testing.T) {
	elapsed := int64(1500)
	fractional := models.WholeNumber(120)
	paused := models.SessionPaused

	tests := []struct {
		name  string
		frame models.Frame
		want  message
	}{
		{"binary", models.BinaryFrame([]byte(`{"type":"presence"}`)), relay{}},
		{"not json", models.TextFrame([]byte("hello")), relay{}},
		{"unknown type", models.TextFrame([]byte(`{"type":"chat","userId":"u1"}`)), relay{}},
		{"no type", models.TextFrame([]byte(`{"userId":"u1"}`)), relay{}},
		{"non-string type", models.TextFrame([]byte(`{"type":7}`)), relay{}},
		{
			"presence joined",
			models.TextFrame([]byte(`{"type":"presence","userId":"u1","username":"Ada","data":{"status":"joined"}}`)),
			presenceJoin{userID: "u1", username: "Ada"},
		},
		{
			"presence joined without user",
			models.TextFrame([]byte(`{"type":"presence","data":{"status":"joined"}}`)),
			ignored{kind: models.TypePresence},
		},
		{
			"presence other status",
			models.TextFrame([]byte(`{"type":"presence","userId":"u1","data":{"status":"typing"}}`)),
			relay{},
		},
		{
			"session start",
			models.TextFrame([]byte(`{"type":"session-start","userId":"u1","username":"Ada","data":{"subject":"Math","isPublic":true}}`)),
			sessionStart{userID: "u1", username: "Ada", data: models.SessionStartData{Subject: "Math", IsPublic: true}},
		},
		{
			"session start bad data",
			models.TextFrame([]byte(`{"type":"session-start","userId":"u1","data":"nope"}`)),
			ignored{kind: models.TypeSessionStart},
		},
		{
			"presence bad data",
			models.TextFrame([]byte(`{"type":"presence","userId":"u1","data":[1,2]}`)),
			ignored{kind: models.TypePresence},
		},
		{
			"known type with malformed envelope",
			models.TextFrame([]byte(`{"type":"session-update","userId":42,"data":{"elapsedTime":5}}`)),
			ignored{kind: models.TypeSessionUpdate},
		},
		{
			"session update without user",
			models.TextFrame([]byte(`{"type":"session-update","data":{"elapsedTime":5}}`)),
			ignored{kind: models.TypeSessionUpdate},
		},
		{
			"session update fractional elapsed",
			models.TextFrame([]byte(`{"type":"session-update","userId":"u1","data":{"elapsedTime":120.5,"status":"paused"}}`)),
			sessionUpdate{userID: "u1", data: models.SessionUpdateData{ElapsedTime: &fractional, Status: &paused}},
		},
		{
			"session update string elapsed",
			models.TextFrame([]byte(`{"type":"session-update","userId":"u1","data":{"elapsedTime":"120"}}`)),
			ignored{kind: models.TypeSessionUpdate},
		},
		{
			"session end with elapsed",
			models.TextFrame([]byte(`{"type":"session-end","userId":"u1","data":{"elapsedTime":1500}}`)),
			sessionEnd{userID: "u1", elapsedTime: &elapsed},
		},
		{
			"session end without data",
			models.TextFrame([]byte(`{"type":"session-end","userId":"u1"}`)),
			sessionEnd{userID: "u1"},
		},
		{
			"session list request",
			models.TextFrame([]byte(`{"type":"session-list-request"}`)),
			sessionListRequest{},
		},
		{
			"kick",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","username":"M","data":{"action":"kick","targetUserId":"u1","reason":"spam"}}`)),
			moderation{action: models.ActionKick, adminID: "mod", adminName: "M", target: "u1", reason: "spam"},
		},
		{
			"temporary ban",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","data":{"action":"ban","targetUserId":"u1","durationMs":60000}}`)),
			moderation{action: models.ActionBan, adminID: "mod", target: "u1", durationMs: 60000},
		},
		{
			"ban with string duration",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","data":{"action":"ban","targetUserId":"u1","durationMs":"60000"}}`)),
			ignored{kind: models.TypeAdminAction},
		},
		{
			"ban with fractional duration",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","data":{"action":"ban","targetUserId":"u1","durationMs":1500.7}}`)),
			moderation{action: models.ActionBan, adminID: "mod", target: "u1", durationMs: 1500},
		},
		{
			"ban without target",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","data":{"action":"ban"}}`)),
			ignored{kind: models.TypeAdminAction},
		},
		{
			"other admin action",
			models.TextFrame([]byte(`{"type":"admin-action","userId":"mod","data":{"action":"mute","targetUserId":"u1"}}`)),
			relay{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode(tt.frame)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
