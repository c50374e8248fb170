package chat

import (
	"context"
	"fmt"

	"roomchat/internal/models"
)

// HandleEvent routes a validated client command to its operation. Errors
// are meant for the originating connection only.
func (c *Coordinator) HandleEvent(ctx context.Context, connID string, cmd models.Command) error {
	if auth, ok := cmd.(models.Authenticate); ok {
		_, err := c.Bind(ctx, connID, auth.Token)
		return err
	}

	if err := c.requireBound(connID); err != nil {
		return err
	}

	switch cmd := cmd.(type) {
	case models.ListRooms:
		c.gateway.SendTo(connID, models.RoomList{Rooms: c.rooms.List()})
		return nil
	case models.CreateRoom:
		_, err := c.CreateRoom(cmd.Name, cmd.Description)
		return err
	case models.JoinRoom:
		return c.Join(connID, cmd.RoomID)
	case models.LeaveRoom:
		return c.Leave(connID)
	case models.SendMessage:
		_, err := c.Send(connID, cmd.RoomID, cmd.Body)
		return err
	case models.SetTyping:
		return c.SetTyping(connID, cmd.RoomID, cmd.IsTyping)
	case models.MarkRead:
		return c.MarkRead(connID, cmd.RoomID, cmd.MessageID)
	case models.SendDirect:
		_, err := c.DirectMessage(connID, cmd.To, cmd.Body)
		return err
	default:
		return fmt.Errorf("%w: unsupported command %T", models.ErrInvalidCommand, cmd)
	}
}
