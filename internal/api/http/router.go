package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(roomController *RoomController, chatController *ChatController, allowOrigins []string) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(allowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	rooms := api.Group("/rooms")

	if roomController != nil {
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.PUT("/:roomID/lock", roomController.SetLock)
		rooms.GET("/:roomID/participants", roomController.ListParticipants)
		rooms.GET("/:roomID/ws", roomController.JoinRoom)
	}

	if chatController != nil {
		rooms.GET("/:roomID/messages", chatController.ListMessages)
		rooms.POST("/:roomID/messages", chatController.PostMessage)
	}

	return router
}
