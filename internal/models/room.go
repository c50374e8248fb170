package models

import "time"

// Identity is the authenticated principal behind one or more connections.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// RoomInfo is the persisted, immutable part of a room.
type RoomInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoomSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MemberCount int    `json:"member_count"`
}

// Message is a room message. Only ReadBy changes after creation, and it
// only grows.
type Message struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	RoomID    string    `json:"room_id"`
	Sender    Identity  `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	ReadBy    []string  `json:"read_by"`
}

// DirectMessage is delivered to the connections of one identity and never
// enters room history.
type DirectMessage struct {
	ID        string    `json:"id"`
	From      Identity  `json:"from"`
	To        Identity  `json:"to"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
