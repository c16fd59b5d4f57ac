package redis

import "fmt"

// Key construction helpers for room release data

// RoomStateKey returns the key for a room's controller state snapshot (hash)
// Pattern: roomrelease:state:{room}
func RoomStateKey(room string) string {
	return fmt.Sprintf("roomrelease:state:%s", room)
}

// RoomStatusKey returns the key for a room's last known device status values (hash)
// Pattern: roomrelease:status:{room}
func RoomStatusKey(room string) string {
	return fmt.Sprintf("roomrelease:status:%s", room)
}

// RoomLogKey returns the key for a room's release lifecycle log (list, newest first)
// Pattern: roomrelease:log:{room}
func RoomLogKey(room string) string {
	return fmt.Sprintf("roomrelease:log:%s", room)
}
