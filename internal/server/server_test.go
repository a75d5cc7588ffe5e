package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/metcalfc/readaloud/internal/reader"
	"github.com/metcalfc/readaloud/internal/speech"
	"github.com/metcalfc/readaloud/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRenderer struct {
	err   error
	voice string
}

func (f *fakeRenderer) Render(_ context.Context, index int, text, voice string) (speech.AudioAsset, error) {
	if f.err != nil {
		return speech.AudioAsset{}, &speech.SynthesisError{Index: index, Err: f.err}
	}
	f.voice = voice
	return speech.AudioAsset{Index: index, Voice: voice, Data: []byte("RIFF" + text), Duration: 1500 * time.Millisecond}, nil
}

func newTestServer(t *testing.T, renderer Renderer) (*Server, state.Store) {
	t.Helper()
	store := state.NewMemoryStore()
	return New(store, renderer, zaptest.NewLogger(t), Options{MaxUploadBytes: 1 << 20, Voice: "alba"}), store
}

func do(t *testing.T, s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, s *Server, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return do(t, s, http.MethodPost, "/api/documents", buf.Bytes(), mw.FormDataContentType())
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestUploadAndGetDocument(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := upload(t, s, "My Book.txt", []byte("One para-\ngraph.\n\nTwo.\n\nThree."))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc documentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "My_Book_txt", doc.ID)
	assert.Equal(t, "My Book.txt", doc.Name)
	assert.Equal(t, 3, doc.ChunkCount)
	require.Len(t, doc.Chunks, 3)
	assert.Equal(t, "One paragraph.", doc.Chunks[0].Text)

	w = do(t, s, http.MethodGet, "/api/documents/My_Book_txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got documentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, doc, got)

	w = do(t, s, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []documentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].WordCount)
}

func TestUploadMarkdownSections(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := upload(t, s, "guide.md", []byte("# Setup\n\nInstall it.\n\n## Usage\n\nRun it."))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var doc documentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, []reader.Section{
		{Title: "Setup", Level: 0, Chunk: 0},
		{Title: "Usage", Level: 1, Chunk: 2},
	}, doc.Sections)
}

func TestGetDocumentFullText(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := upload(t, s, "story.txt", []byte("First para-\ngraph.\n\nSecond one."))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc documentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Empty(t, doc.Text)

	w = do(t, s, http.MethodGet, "/api/documents/story_txt?text=true", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	doc = documentResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc.Text, "First paragraph.")
	assert.Contains(t, doc.Text, "Second one.")

	w = do(t, s, http.MethodGet, "/api/documents/story_txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	doc = documentResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Empty(t, doc.Text)
}

func TestUploadErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := upload(t, s, "legacy.doc", []byte("binary"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "unsupported_format", decodeError(t, w).Code)

	w = upload(t, s, "broken.epub", []byte("not a zip"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "extraction_failed", decodeError(t, w).Code)

	w = upload(t, s, "blank.txt", []byte("   \n\n  "))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, s, http.MethodPost, "/api/documents", []byte("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadTooLarge(t *testing.T) {
	store := state.NewMemoryStore()
	s := New(store, nil, zaptest.NewLogger(t), Options{MaxUploadBytes: 1024})

	w := upload(t, s, "big.txt", []byte(strings.Repeat("word ", 2000)))
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)
}

func TestGetUnknownDocument(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/api/documents/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "not_found", resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func TestChunkAudio(t *testing.T) {
	renderer := &fakeRenderer{}
	s, _ := newTestServer(t, renderer)
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte("Hello.\n\nWorld.")).Code)

	w := do(t, s, http.MethodGet, "/api/documents/a_txt/chunks/1/audio", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/wav", w.Header().Get("Content-Type"))
	assert.Equal(t, "RIFFWorld.", w.Body.String())
	assert.Equal(t, "1.500", w.Header().Get("X-Audio-Duration"))
	assert.Equal(t, "alba", renderer.voice)

	w = do(t, s, http.MethodGet, "/api/documents/a_txt/chunks/0/audio?voice=jean", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jean", renderer.voice)

	for _, path := range []string{
		"/api/documents/a_txt/chunks/2/audio",
		"/api/documents/a_txt/chunks/-1/audio",
		"/api/documents/a_txt/chunks/x/audio",
		"/api/documents/missing/chunks/0/audio",
	} {
		assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, path, nil, "").Code, path)
	}
}

func TestChunkAudioSynthesisError(t *testing.T) {
	s, _ := newTestServer(t, &fakeRenderer{err: errors.New("service down")})
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte("Hello.")).Code)

	w := do(t, s, http.MethodGet, "/api/documents/a_txt/chunks/0/audio", nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "synthesis_failed", decodeError(t, w).Code)
}

func TestChunkAudioWithoutRenderer(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte("Hello.")).Code)

	w := do(t, s, http.MethodGet, "/api/documents/a_txt/chunks/0/audio", nil, "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestPositions(t *testing.T) {
	s, store := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte("One.\n\nTwo.")).Code)

	w := do(t, s, http.MethodGet, "/api/positions/a_txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var pos state.Position
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pos))
	assert.Equal(t, 0, pos.ChunkIndex)
	assert.Equal(t, 0.0, pos.Offset)

	w = do(t, s, http.MethodPut, "/api/positions/a_txt", []byte(`{"chunk":1,"offset":12}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	saved, err := store.Load(context.Background(), "a_txt")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.ChunkIndex)
	assert.Equal(t, 12.0, saved.Offset)

	w = do(t, s, http.MethodGet, "/api/positions/a_txt", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pos))
	assert.Equal(t, 1, pos.ChunkIndex)
	assert.Equal(t, 12.0, pos.Offset)

	w = do(t, s, http.MethodDelete, "/api/positions/a_txt", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	saved, err = store.Load(context.Background(), "a_txt")
	require.NoError(t, err)
	assert.Equal(t, state.Position{}, saved)
}

func TestPutPositionInvalid(t *testing.T) {
	s, _ := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte("One.\n\nTwo.")).Code)

	bodies := []string{
		`{"chunk":-1,"offset":0}`,
		`{"chunk":0,"offset":-3}`,
		`{"chunk":2,"offset":0}`,
		`{"chunk":0}`,
		`not json`,
	}
	for _, body := range bodies {
		w := do(t, s, http.MethodPut, "/api/positions/a_txt", []byte(body), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "invalid_position", decodeError(t, w).Code, body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestGzipResponses(t *testing.T) {
	s, _ := newTestServer(t, &fakeRenderer{})
	require.Equal(t, http.StatusCreated, upload(t, s, "a.txt", []byte(strings.Repeat("Some words here. ", 50))).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/a_txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	req = httptest.NewRequest(http.MethodGet, "/api/documents/a_txt/chunks/0/audio", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestRun(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
