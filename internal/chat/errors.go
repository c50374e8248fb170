package chat

import (
	"errors"

	"roomchat/internal/models"
)

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNotBound          = errors.New("connection is not bound to an identity")
	ErrAlreadyBound      = errors.New("connection is already bound to an identity")
	ErrNotInRoom         = errors.New("not in a room")
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("a room with this name already exists")
	ErrInvalidRoomName   = errors.New("invalid room name")
	ErrEmptyBody         = errors.New("message body is empty")
	ErrBodyTooLong       = errors.New("message body is too long")
	ErrRecipientOffline  = errors.New("recipient is offline")
	ErrDeliveryFailure   = errors.New("delivery failed")
)

// ErrorCode maps an operation error to the code sent back to the client.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotBound):
		return "not_bound"
	case errors.Is(err, ErrAlreadyBound):
		return "already_bound"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomAlreadyExists):
		return "room_already_exists"
	case errors.Is(err, ErrInvalidRoomName):
		return "invalid_room_name"
	case errors.Is(err, ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, ErrBodyTooLong):
		return "body_too_long"
	case errors.Is(err, ErrRecipientOffline):
		return "recipient_offline"
	case errors.Is(err, models.ErrInvalidCommand):
		return "invalid_command"
	default:
		return "internal"
	}
}
