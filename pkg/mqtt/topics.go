package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout shared with the room device bridge.
//
//	roomos/{room}/status/{metric}   status changes pushed by the bridge
//	roomos/{room}/event/{event}     device events (bookings, UI, presentation)
//	roomos/{room}/request           requests sent to the bridge
//	roomos/{room}/response          replies from the bridge
const (
	TopicRoomPrefix = "roomos"

	TopicAllStatus    = "roomos/+/status/+"
	TopicAllEvents    = "roomos/+/event/+"
	TopicAllResponses = "roomos/+/response"
)

// StatusTopic returns the topic a room's status metric is published on
func StatusTopic(room, metric string) string {
	return fmt.Sprintf("%s/%s/status/%s", TopicRoomPrefix, room, metric)
}

// EventTopic returns the topic a room's device event is published on
func EventTopic(room, event string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicRoomPrefix, room, event)
}

// RequestTopic returns the topic requests to a room's device bridge go to
func RequestTopic(room string) string {
	return fmt.Sprintf("%s/%s/request", TopicRoomPrefix, room)
}

// ResponseTopic returns the topic a room's device bridge replies on
func ResponseTopic(room string) string {
	return fmt.Sprintf("%s/%s/response", TopicRoomPrefix, room)
}

// AvailabilityTopic is where a service announces "online" or "offline" (retained)
func AvailabilityTopic(service string) string {
	return fmt.Sprintf("jeeves/%s/availability", service)
}

// ParseRoomTopic splits roomos/{room}/{kind}[/{name}] into its parts.
// name is empty for request/response topics.
func ParseRoomTopic(topic string) (room, kind, name string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != TopicRoomPrefix || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid room topic: %s", topic)
	}
	if len(parts) == 4 {
		return parts[1], parts[2], parts[3], nil
	}
	return parts[1], parts[2], "", nil
}
