package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type EventType string

const (
	EventSessionReady    EventType = "session_ready"
	EventPresenceChanged EventType = "presence_changed"
	EventRoomList        EventType = "room_list"
	EventRoomCreated     EventType = "room_created"
	EventRoomUpdated     EventType = "room_updated"
	EventMemberJoined    EventType = "member_joined"
	EventMemberLeft      EventType = "member_left"
	EventRoomHistory     EventType = "room_history"
	EventMessageReceived EventType = "message_received"
	EventTypingChanged   EventType = "typing_changed"
	EventReadReceipt     EventType = "read_receipt"
	EventDirectMessage   EventType = "direct_message"
	EventError           EventType = "error"
)

// Payload is implemented by every server event body.
type Payload interface {
	EventType() EventType
}

// Event is the envelope written to clients.
type Event struct {
	Type    EventType `json:"type"`
	Payload Payload   `json:"payload"`
}

func NewEvent(p Payload) Event {
	return Event{Type: p.EventType(), Payload: p}
}

type SessionReady struct {
	Identity Identity      `json:"identity"`
	Rooms    []RoomSummary `json:"rooms"`
	Online   []Identity    `json:"online"`
}

type PresenceChanged struct {
	Identity Identity `json:"identity"`
	Online   bool     `json:"online"`
}

type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomCreated struct {
	Room RoomSummary `json:"room"`
}

type RoomUpdated struct {
	RoomID      string `json:"room_id"`
	MemberCount int    `json:"member_count"`
}

type MemberJoined struct {
	RoomID   string   `json:"room_id"`
	Identity Identity `json:"identity"`
}

type MemberLeft struct {
	RoomID   string   `json:"room_id"`
	Identity Identity `json:"identity"`
}

type RoomHistory struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
}

type MessageReceived struct {
	Message Message `json:"message"`
}

type TypingChanged struct {
	RoomID string     `json:"room_id"`
	Users  []Identity `json:"users"`
}

type ReadReceipt struct {
	RoomID    string   `json:"room_id"`
	MessageID string   `json:"message_id"`
	Identity  Identity `json:"identity"`
}

type DirectMessageReceived struct {
	Message DirectMessage `json:"message"`
}

type ErrorEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (SessionReady) EventType() EventType          { return EventSessionReady }
func (PresenceChanged) EventType() EventType       { return EventPresenceChanged }
func (RoomList) EventType() EventType              { return EventRoomList }
func (RoomCreated) EventType() EventType           { return EventRoomCreated }
func (RoomUpdated) EventType() EventType           { return EventRoomUpdated }
func (MemberJoined) EventType() EventType          { return EventMemberJoined }
func (MemberLeft) EventType() EventType            { return EventMemberLeft }
func (RoomHistory) EventType() EventType           { return EventRoomHistory }
func (MessageReceived) EventType() EventType       { return EventMessageReceived }
func (TypingChanged) EventType() EventType         { return EventTypingChanged }
func (ReadReceipt) EventType() EventType           { return EventReadReceipt }
func (DirectMessageReceived) EventType() EventType { return EventDirectMessage }
func (ErrorEvent) EventType() EventType            { return EventError }

type CommandType string

const (
	CommandAuthenticate  CommandType = "authenticate"
	CommandListRooms     CommandType = "list_rooms"
	CommandCreateRoom    CommandType = "create_room"
	CommandJoinRoom      CommandType = "join_room"
	CommandLeaveRoom     CommandType = "leave_room"
	CommandSendMessage   CommandType = "send_message"
	CommandTyping        CommandType = "typing"
	CommandMarkRead      CommandType = "mark_read"
	CommandDirectMessage CommandType = "direct_message"
)

// Command is a validated client request.
type Command interface {
	CommandType() CommandType
}

type Authenticate struct {
	Token string `json:"token"`
}

type ListRooms struct{}

type CreateRoom struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type JoinRoom struct {
	RoomID string `json:"room_id"`
}

type LeaveRoom struct{}

// SendMessage carries an optional RoomID; when set it must match the
// sender's current room.
type SendMessage struct {
	RoomID string `json:"room_id,omitempty"`
	Body   string `json:"body"`
}

type SetTyping struct {
	RoomID   string `json:"room_id,omitempty"`
	IsTyping bool   `json:"is_typing"`
}

type MarkRead struct {
	RoomID    string `json:"room_id,omitempty"`
	MessageID string `json:"message_id"`
}

type SendDirect struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (Authenticate) CommandType() CommandType { return CommandAuthenticate }
func (ListRooms) CommandType() CommandType    { return CommandListRooms }
func (CreateRoom) CommandType() CommandType   { return CommandCreateRoom }
func (JoinRoom) CommandType() CommandType     { return CommandJoinRoom }
func (LeaveRoom) CommandType() CommandType    { return CommandLeaveRoom }
func (SendMessage) CommandType() CommandType  { return CommandSendMessage }
func (SetTyping) CommandType() CommandType    { return CommandTyping }
func (MarkRead) CommandType() CommandType     { return CommandMarkRead }
func (SendDirect) CommandType() CommandType   { return CommandDirectMessage }

var ErrInvalidCommand = errors.New("invalid command")

type commandEnvelope struct {
	Type      CommandType     `json:"type"`
	RequestID string          `json:"request_id"`
	Payload   json.RawMessage `json:"payload"`
}

// ParseCommand decodes a client frame into a typed command and its request
// id. Structural problems are reported as ErrInvalidCommand; semantic checks
// such as blank bodies are left to the coordinator.
func ParseCommand(data []byte) (Command, string, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	var (
		cmd Command
		err error
	)
	switch env.Type {
	case CommandAuthenticate:
		var c Authenticate
		if err = decodePayload(env.Payload, &c); err == nil {
			err = requireField("token", c.Token)
		}
		cmd = c
	case CommandListRooms:
		cmd = ListRooms{}
	case CommandCreateRoom:
		var c CreateRoom
		if err = decodePayload(env.Payload, &c); err == nil {
			err = requireField("name", c.Name)
		}
		cmd = c
	case CommandJoinRoom:
		var c JoinRoom
		if err = decodePayload(env.Payload, &c); err == nil {
			err = requireField("room_id", c.RoomID)
		}
		cmd = c
	case CommandLeaveRoom:
		cmd = LeaveRoom{}
	case CommandSendMessage:
		var c SendMessage
		err = decodePayload(env.Payload, &c)
		cmd = c
	case CommandTyping:
		var raw struct {
			RoomID   string `json:"room_id"`
			IsTyping *bool  `json:"is_typing"`
		}
		if err = decodePayload(env.Payload, &raw); err == nil && raw.IsTyping == nil {
			err = fmt.Errorf("%w: is_typing is required", ErrInvalidCommand)
		}
		if err == nil {
			cmd = SetTyping{RoomID: raw.RoomID, IsTyping: *raw.IsTyping}
		}
	case CommandMarkRead:
		var c MarkRead
		if err = decodePayload(env.Payload, &c); err == nil {
			err = requireField("message_id", c.MessageID)
		}
		cmd = c
	case CommandDirectMessage:
		var c SendDirect
		if err = decodePayload(env.Payload, &c); err == nil {
			err = requireField("to", c.To)
		}
		cmd = c
	case "":
		err = fmt.Errorf("%w: missing type", ErrInvalidCommand)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, env.Type)
	}

	if err != nil {
		return nil, env.RequestID, err
	}
	return cmd, env.RequestID, nil
}

func decodePayload(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", ErrInvalidCommand)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidCommand, name)
	}
	return nil
}
