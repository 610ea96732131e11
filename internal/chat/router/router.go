package router

import (
	"context"

	"campus_chat_service/internal/chat/app"
	"campus_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes register the two websocket namespaces
func RegisterRoutes(r *fiber.App, privateWS *app.PrivateWebsocketHandler, groupWS *app.GroupWebsocketHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws/private", websocket.New(func(c *websocket.Conn) {
		privateWS.HandleConnection(context.Background(), c)
	}))

	r.Get("/ws/groups", websocket.New(func(c *websocket.Conn) {
		groupWS.HandleConnection(context.Background(), c)
	}))
}
