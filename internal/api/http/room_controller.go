package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/meshconf/internal/api/http/converter"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/immxrtalbeast/meshconf/internal/service"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type RoomController struct {
	rooms    service.RelayInteractor
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewRoomController(rooms service.RelayInteractor, log *slog.Logger) *RoomController {
	if log == nil {
		log = slog.Default()
	}
	return &RoomController{
		rooms: rooms,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	room, err := c.rooms.GetRoom(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) SetLock(ctx *gin.Context) {
	type request struct {
		Locked  *bool  `json:"locked" binding:"required"`
		AdminID string `json:"admin_id" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	room, err := c.rooms.SetRoomLocked(ctx.Request.Context(), ctx.Param("roomID"), *req.Locked, req.AdminID)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	roster, err := c.rooms.ListParticipants(ctx.Request.Context(), ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"participants": converter.PresencesToApi(roster)})
}

// JoinRoom upgrades to a websocket and keeps the caller subscribed to the room until the socket closes.
func (c *RoomController) JoinRoom(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	if !domain.ValidRoomID(roomID) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID := ctx.Query("user_id")
	if userID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Info("failed to upgrade connection", sl.Err(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	presence := domain.Presence{
		UserID:   userID,
		Nickname: ctx.Query("name"),
		JoinedAt: time.Now().UTC(),
	}

	participant, err := c.rooms.RegisterParticipant(context.Background(), roomID, presence)
	if err != nil {
		_ = conn.WriteJSON(domain.SignalMessage{Type: domain.SignalError, Error: err.Error()})
		conn.Close()
		return
	}
	participant.Mutex.Lock()
	participant.Socket = conn
	participant.Mutex.Unlock()
	participant.SetStatus(domain.ParticipantStatusConnected)

	log := c.log.With(slog.String("room_id", roomID), slog.String("user_id", userID))

	replies := make(chan domain.SignalMessage, 8)
	go forwardParticipantEvents(participant, conn, replies)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		participant.Touch()
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg domain.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("socket read stopped", sl.Err(err))
			}
			_ = c.rooms.UnregisterParticipant(context.Background(), roomID, participant)
			conn.Close()
			return
		}

		if err := c.rooms.HandleSignal(context.Background(), roomID, userID, &msg); err != nil {
			if errors.Is(err, service.ErrParticipantNotFound) && msg.Type == domain.SignalLeave {
				continue
			}
			select {
			case replies <- domain.SignalMessage{Type: domain.SignalError, Room: roomID, Error: err.Error()}:
			default:
			}
		}
	}
}

// forwardParticipantEvents is the only writer of conn.
func forwardParticipantEvents(participant *domain.Participant, conn *websocket.Conn, replies <-chan domain.SignalMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-participant.Events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case reply := <-replies:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound), errors.Is(err, service.ErrParticipantNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRoomID),
		errors.Is(err, service.ErrInvalidSignal),
		errors.Is(err, service.ErrUnsupportedSignal),
		errors.Is(err, service.ErrEmptyChatMessage),
		errors.Is(err, service.ErrChatMessageTooLong),
		errors.Is(err, service.ErrChatSenderTooLong),
		errors.Is(err, service.ErrChatSenderRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
