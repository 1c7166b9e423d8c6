package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/book-expert/speech-gateway/internal/store"
)

// artifactNamePattern matches the only names the cache ever produces: a
// 64-character hex digest plus the artifact extension.
var artifactNamePattern = regexp.MustCompile(`^[0-9a-f]{64}\.mp3$`)

const contentTypeMPEG = "audio/mpeg"

// ttsRequest is the JSON payload for POST /tts.
type ttsRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// ttsResponse is the JSON payload returned for POST /tts.
type ttsResponse struct {
	Link   string `json:"link"`
	Cached bool   `json:"cached"`
}

// transcribeResponse is the JSON payload returned for POST /transcribe.
type transcribeResponse struct {
	Transcription string  `json:"transcription"`
	TimeTaken     float64 `json:"time_taken"`
}

// detailResponse is the error envelope used by every endpoint.
type detailResponse struct {
	Detail string `json:"detail"`
}

// handleTTS resolves the request against the artifact cache, generating
// audio through the synthesis provider only on a miss.
func (s *Server) handleTTS(c *gin.Context) {
	var req ttsRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: err.Error()})

		return
	}

	if req.Text == "" {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "text cannot be empty"})

		return
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	key, cached, err := s.cache.Resolve(c.Request.Context(), req.Text, model)
	if err != nil {
		s.log.Error("TTS request failed: %v", err)
		c.JSON(http.StatusInternalServerError, detailResponse{Detail: err.Error()})

		return
	}

	c.JSON(http.StatusOK, ttsResponse{
		Link:   s.artifactLink(c, key),
		Cached: cached,
	})
}

// handleTranscribe forwards an uploaded audio file to the transcription
// provider. The declared content type must be on the allow-list; nothing is
// sent to the provider otherwise.
func (s *Server) handleTranscribe(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "missing file upload: " + err.Error()})

		return
	}

	mediaType := fileHeader.Header.Get("Content-Type")
	if _, ok := s.allowedMediaTypes[mediaType]; !ok {
		c.JSON(http.StatusBadRequest, detailResponse{Detail: "unsupported media type: " + mediaType})

		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, detailResponse{Detail: "failed to open upload: " + err.Error()})

		return
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close upload: %v", closeErr)
		}
	}()

	audio, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, detailResponse{Detail: "failed to read upload: " + err.Error()})

		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.transcribeTimeout)
	defer cancel()

	start := time.Now()

	transcription, err := s.transcriber.Transcribe(ctx, audio, mediaType)
	if err != nil {
		s.log.Error("Transcription failed: %v", err)
		c.JSON(http.StatusInternalServerError, detailResponse{Detail: "error during transcription: " + err.Error()})

		return
	}

	c.JSON(http.StatusOK, transcribeResponse{
		Transcription: transcription,
		TimeTaken:     time.Since(start).Seconds(),
	})
}

// handleStatic serves an immutable cached artifact by name.
func (s *Server) handleStatic(c *gin.Context) {
	name := c.Param("name")
	if !artifactNamePattern.MatchString(name) {
		c.JSON(http.StatusNotFound, detailResponse{Detail: "not found"})

		return
	}

	data, err := s.store.Get(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			c.JSON(http.StatusNotFound, detailResponse{Detail: "not found"})

			return
		}

		s.log.Error("Failed to read artifact %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, detailResponse{Detail: err.Error()})

		return
	}

	c.Data(http.StatusOK, contentTypeMPEG, data)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// artifactLink builds the absolute URL for a cached artifact, respecting the
// scheme and host the client used to reach the gateway.
func (s *Server) artifactLink(c *gin.Context, key string) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}

	return scheme + "://" + c.Request.Host + "/static/" + key
}
