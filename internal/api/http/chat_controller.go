package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/meshconf/internal/api/http/converter"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/service"
)

type ChatController struct {
	chat service.ChatInteractor
}

func NewChatController(chat service.ChatInteractor) *ChatController {
	return &ChatController{chat: chat}
}

func (c *ChatController) ListMessages(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := c.chat.History(ctx.Request.Context(), ctx.Param("roomID"), limit)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"messages": converter.ChatMessagesToApi(messages)})
}

func (c *ChatController) PostMessage(ctx *gin.Context) {
	type request struct {
		SenderID string `json:"sender_id" binding:"required"`
		Nickname string `json:"nickname"`
		Content  string `json:"content" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sender := domain.Presence{UserID: req.SenderID, Nickname: req.Nickname}
	msg, err := c.chat.PostMessage(ctx.Request.Context(), ctx.Param("roomID"), sender, req.Content)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": converter.ChatMessageToApi(msg)})
}
