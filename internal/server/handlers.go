package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
	"github.com/metcalfc/readaloud/internal/state"
	"go.uber.org/zap"
)

var (
	errNotFound       = errors.New("document not found")
	errNoRenderer     = errors.New("audio rendering needs the remote speech backend")
	errFileRequired   = errors.New("file is required")
	errUploadTooLarge = errors.New("upload too large")
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type documentSummary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Format     reader.Format `json:"format"`
	ChunkCount int           `json:"chunk_count"`
	WordCount  int           `json:"word_count"`
}

type documentResponse struct {
	documentSummary
	Chunks   []reader.Chunk   `json:"chunks"`
	Sections []reader.Section `json:"sections,omitempty"`
	// Text is the full cleaned text, sent only when asked for with ?text=true.
	Text string `json:"text,omitempty"`
}

func describe(doc *reader.Document, withText bool) documentResponse {
	resp := documentResponse{documentSummary: summarize(doc), Chunks: doc.Chunks, Sections: doc.Sections}
	if withText {
		resp.Text = doc.Text
	}
	return resp
}

type positionRequest struct {
	ChunkIndex *int     `json:"chunk"`
	Offset     *float64 `json:"offset"`
}

func summarize(doc *reader.Document) documentSummary {
	return documentSummary{
		ID:         doc.ID,
		Name:       doc.Name,
		Format:     doc.Format,
		ChunkCount: doc.ChunkCount(),
		WordCount:  doc.WordCount(),
	}
}

// handleError maps domain errors to status codes and logs the cause.
func (s *Server) handleError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal"

	var unsupported *reader.UnsupportedFormatError
	var extraction *reader.ExtractionError
	var synthesis *speech.SynthesisError
	switch {
	case errors.As(err, &unsupported):
		status, code = http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.As(err, &extraction):
		status, code = http.StatusUnprocessableEntity, "extraction_failed"
	case errors.As(err, &synthesis):
		status, code = http.StatusBadGateway, "synthesis_failed"
	case errors.Is(err, state.ErrInvalidPosition):
		status, code = http.StatusBadRequest, "invalid_position"
	case errors.Is(err, errNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, errNoRenderer):
		status, code = http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, errFileRequired):
		status, code = http.StatusBadRequest, "invalid_file"
	case errors.Is(err, errUploadTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "too_large"
	}

	_ = c.Error(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code, RequestID: requestID(c)})
}

func (s *Server) uploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleError(c, fmt.Errorf("%w: limit is %d bytes", errUploadTooLarge, s.opts.MaxUploadBytes))
			return
		}
		s.handleError(c, errFileRequired)
		return
	}

	// Reject unknown extensions before reading the body.
	if _, err := reader.FormatFromFilename(file.Filename); err != nil {
		s.handleError(c, err)
		return
	}

	f, err := file.Open()
	if err != nil {
		s.handleError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.handleError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	start := time.Now()
	doc, err := reader.Open(file.Filename, data, s.opts.Chunk)
	if err != nil {
		s.handleError(c, err)
		return
	}
	s.addDocument(doc)
	s.log.Info("document loaded",
		zap.String("doc", doc.ID),
		zap.String("format", string(doc.Format)),
		zap.Int("chunks", doc.ChunkCount()),
		zap.Duration("took", time.Since(start)))

	c.JSON(http.StatusCreated, describe(doc, false))
}

func (s *Server) listDocuments(c *gin.Context) {
	s.mu.RLock()
	out := make([]documentSummary, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, summarize(doc))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	c.JSON(http.StatusOK, out)
}

func (s *Server) getDocument(c *gin.Context) {
	doc, ok := s.document(c.Param("id"))
	if !ok {
		s.handleError(c, errNotFound)
		return
	}
	withText, _ := strconv.ParseBool(c.Query("text"))
	c.JSON(http.StatusOK, describe(doc, withText))
}

func (s *Server) chunkAudio(c *gin.Context) {
	doc, ok := s.document(c.Param("id"))
	if !ok {
		s.handleError(c, errNotFound)
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.handleError(c, fmt.Errorf("%w: chunk index %q", errNotFound, c.Param("index")))
		return
	}
	chunk, ok := doc.Chunk(index)
	if !ok {
		s.handleError(c, fmt.Errorf("%w: chunk %d of %d", errNotFound, index, doc.ChunkCount()))
		return
	}
	if s.renderer == nil {
		s.handleError(c, errNoRenderer)
		return
	}

	voice := c.DefaultQuery("voice", s.opts.Voice)
	asset, err := s.renderer.Render(c.Request.Context(), chunk.Index, chunk.Text, voice)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.Header("X-Audio-Duration", strconv.FormatFloat(asset.Duration.Seconds(), 'f', 3, 64))
	c.Data(http.StatusOK, "audio/wav", asset.Data)
}

func (s *Server) getPosition(c *gin.Context) {
	pos, err := s.store.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) putPosition(c *gin.Context) {
	id := c.Param("id")

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.handleError(c, fmt.Errorf("%w: %v", state.ErrInvalidPosition, err))
		return
	}
	if req.ChunkIndex == nil || req.Offset == nil {
		s.handleError(c, fmt.Errorf("%w: chunk and offset are required", state.ErrInvalidPosition))
		return
	}

	pos := state.Position{ChunkIndex: *req.ChunkIndex, Offset: *req.Offset, UpdatedAt: time.Now().UTC()}
	if doc, ok := s.document(id); ok && pos.ChunkIndex >= doc.ChunkCount() {
		s.handleError(c, fmt.Errorf("%w: chunk %d of %d", state.ErrInvalidPosition, pos.ChunkIndex, doc.ChunkCount()))
		return
	}
	if err := s.store.Save(c.Request.Context(), id, pos); err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) deletePosition(c *gin.Context) {
	if err := s.store.Clear(c.Request.Context(), c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
