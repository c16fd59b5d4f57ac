package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicBuilders(t *testing.T) {
	assert.Equal(t, "roomos/boardroom/status/presence", StatusTopic("boardroom", "presence"))
	assert.Equal(t, "roomos/boardroom/event/booking_start", EventTopic("boardroom", "booking_start"))
	assert.Equal(t, "roomos/boardroom/request", RequestTopic("boardroom"))
	assert.Equal(t, "roomos/boardroom/response", ResponseTopic("boardroom"))
	assert.Equal(t, "jeeves/room-release-agent/availability", AvailabilityTopic("room-release-agent"))
}

func TestParseRoomTopic(t *testing.T) {
	tests := []struct {
		topic   string
		room    string
		kind    string
		name    string
		wantErr bool
	}{
		{topic: "roomos/boardroom/status/presence", room: "boardroom", kind: "status", name: "presence"},
		{topic: "roomos/huddle/event/booking_end", room: "huddle", kind: "event", name: "booking_end"},
		{topic: "roomos/huddle/response", room: "huddle", kind: "response"},
		{topic: "automation/raw/motion/study", wantErr: true},
		{topic: "roomos//status/presence", wantErr: true},
		{topic: "roomos/a/b/c/d", wantErr: true},
		{topic: "roomos/a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			room, kind, name, err := ParseRoomTopic(tt.topic)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.room, room)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.name, name)
		})
	}
}
