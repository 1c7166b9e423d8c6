// Package server exposes the gateway's HTTP surface: cached text-to-speech,
// transcription pass-through, artifact retrieval, and health reporting.
package server

import (
	"time"

	"github.com/book-expert/logger"
	"github.com/gin-gonic/gin"

	"github.com/book-expert/speech-gateway/internal/cache"
	"github.com/book-expert/speech-gateway/internal/core"
)

// Server wires the HTTP handlers to their collaborators.
type Server struct {
	cache             *cache.Manager
	store             core.ArtifactStore
	transcriber       core.Transcriber
	defaultModel      string
	allowedMediaTypes map[string]struct{}
	transcribeTimeout time.Duration
	log               *logger.Logger
}

// New creates a server. allowedMediaTypes is the transcription upload
// allow-list; requests declaring any other content type are rejected before
// the provider is called.
func New(
	cacheManager *cache.Manager,
	store core.ArtifactStore,
	transcriber core.Transcriber,
	defaultModel string,
	allowedMediaTypes []string,
	transcribeTimeout time.Duration,
	log *logger.Logger,
) *Server {
	allowed := make(map[string]struct{}, len(allowedMediaTypes))
	for _, mediaType := range allowedMediaTypes {
		allowed[mediaType] = struct{}{}
	}

	return &Server{
		cache:             cacheManager,
		store:             store,
		transcriber:       transcriber,
		defaultModel:      defaultModel,
		allowedMediaTypes: allowed,
		transcribeTimeout: transcribeTimeout,
		log:               log,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.POST("/tts", s.handleTTS)
	router.POST("/transcribe", s.handleTranscribe)
	router.GET("/static/:name", s.handleStatic)
	router.GET("/health", s.handleHealth)

	return router
}
