// Package router assembles the gin.Engine exposing the query and
// conversation-memory endpoints: the same middleware stack and
// dig.In-parameterized constructor idiom used throughout this module,
// trimmed to its two handlers with auth middleware dropped (see
// DESIGN.md — this is a server-to-server API, not a multi-tenant web
// console).
package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/dig"

	"github.com/policyqa/core/internal/handler"
	"github.com/policyqa/core/internal/middleware"
)

// RouterParams is the dig.In parameter object the router is constructed
// from.
type RouterParams struct {
	dig.In

	QueryHandler        *handler.QueryHandler
	ConversationHandler *handler.ConversationHandler
}

// NewRouter builds the gin.Engine serving the query and conversation-memory endpoints.
func NewRouter(params RouterParams) *gin.Engine {
	r := gin.New()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Session-ID", "X-Request-ID"},
		ExposeHeaders: []string{"X-Session-ID", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.TracingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/query", params.QueryHandler.Query)

	conversation := r.Group("/conversation")
	{
		conversation.POST("/clear", params.ConversationHandler.Clear)
		conversation.GET("/stats", params.ConversationHandler.Stats)
	}

	return r
}
