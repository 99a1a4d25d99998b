package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/emilythestrangee/social-feed/backend/internal/config"
	"github.com/emilythestrangee/social-feed/backend/internal/database"
	"github.com/emilythestrangee/social-feed/backend/internal/handlers"
	"github.com/emilythestrangee/social-feed/backend/internal/logger"
	"github.com/emilythestrangee/social-feed/backend/internal/middleware"
)

type Server struct {
	cfg     *config.Config
	db      database.Service
	handler *handlers.Handler
	log     *logger.Logger
}

// NewServer creates and configures a new server
func NewServer(cfg *config.Config, db database.Service, handler *handlers.Handler, log *logger.Logger) *http.Server {
	newServer := &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		log:     log.With("component", "server"),
	}

	router := newServer.RegisterRoutes()

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.App.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if s.cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.cfg.App.Source))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(s.log))

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		// Public reads
		api.GET("/posts", s.handler.Post.GetPosts)
		api.GET("/posts/:id", s.handler.Post.GetPost)
		api.GET("/users/:id/posts", s.handler.Post.GetUserPosts)
		api.GET("/posts/:id/comments", s.handler.Comment.GetComments)
		api.GET("/posts/:id/comments/:commentId/replies", s.handler.Comment.GetReplies)
		api.GET("/posts/:id/poll/options/:optionId/voters", s.handler.Poll.GetVoters)
		api.GET("/hashtags/trending", s.handler.Hashtag.GetTrending)
		api.GET("/hashtags/:name", s.handler.Hashtag.GetHashtag)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.RequireAuth(s.cfg.Auth.JWTSecret, s.log))
		{
			protected.POST("/posts", s.handler.Post.CreatePost)
			protected.PUT("/posts/:id", s.handler.Post.UpdatePost)
			protected.DELETE("/posts/:id", s.handler.Post.DeletePost)
			protected.POST("/posts/:id/vote", s.handler.Vote.VotePost)
			protected.POST("/posts/:id/poll/vote", s.handler.Poll.VotePoll)

			protected.POST("/posts/:id/comments", s.handler.Comment.CreateComment)
			protected.PUT("/comments/:commentId", s.handler.Comment.UpdateComment)
			protected.DELETE("/comments/:commentId", s.handler.Comment.DeleteComment)
			protected.POST("/comments/:commentId/vote", s.handler.Vote.VoteComment)
		}
	}

	return r
}

func (s *Server) health(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	stats := s.db.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}
