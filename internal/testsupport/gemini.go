package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeGemini is an httptest server speaking the subset of the Gemini REST
// API used by the services: resumable upload, file status, file delete,
// generateContent and the OpenAI-compatible chat endpoint.
type FakeGemini struct {
	APIKey     string
	Transcript string
	Notes      string
	// States is returned by successive file status calls; the last entry
	// repeats. Empty means ACTIVE straight away.
	States []string

	UploadStatus   int
	GenerateStatus int
	ChatStatus     int

	mu            sync.Mutex
	server        *httptest.Server
	uploadMIME    string
	uploadedBytes int
	gets          int
	deletes       []string
	generateCalls int
	chatPrompts   []string
}

func NewFakeGemini(t testing.TB) *FakeGemini {
	t.Helper()

	f := &FakeGemini{
		APIKey:     "fake-key-0123456789",
		Transcript: "Welcome to the meeting. We agreed to ship on Friday.",
		Notes:      "Meeting overview\n- Ship on Friday\nSummary: shipping is on track.",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", f.handleUploadStart)
	mux.HandleFunc("POST /upload-session/{id}", f.handleUploadBytes)
	mux.HandleFunc("GET /v1beta/files/{id}", f.handleGetFile)
	mux.HandleFunc("DELETE /v1beta/files/{id}", f.handleDeleteFile)
	mux.HandleFunc("POST /v1beta/models/{call}", f.handleGenerate)
	mux.HandleFunc("POST /v1beta/openai/chat/completions", f.handleChat)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeGemini) URL() string {
	return f.server.URL
}

func (f *FakeGemini) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

func (f *FakeGemini) GenerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}

func (f *FakeGemini) ChatPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chatPrompts...)
}

func (f *FakeGemini) UploadedBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadedBytes
}

func (f *FakeGemini) UploadMIME() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadMIME
}

func (f *FakeGemini) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("x-goog-api-key") == f.APIKey || r.Header.Get("Authorization") == "Bearer "+f.APIKey {
		return true
	}
	writeGoogleError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "API_KEY_INVALID", "API key not valid. Please pass a valid API key.")
	return false
}

func (f *FakeGemini) handleUploadStart(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	if f.UploadStatus != 0 {
		writeGoogleError(w, f.UploadStatus, "INTERNAL", "", "upload rejected")
		return
	}
	if r.Header.Get("X-Goog-Upload-Protocol") != "resumable" || r.Header.Get("X-Goog-Upload-Command") != "start" {
		writeGoogleError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "", "expected resumable start")
		return
	}

	f.mu.Lock()
	f.uploadMIME = r.Header.Get("X-Goog-Upload-Header-Content-Type")
	f.mu.Unlock()

	w.Header().Set("X-Goog-Upload-URL", f.server.URL+"/upload-session/f1")
	w.WriteHeader(http.StatusOK)
}

func (f *FakeGemini) handleUploadBytes(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.uploadedBytes = len(data)
	mime := f.uploadMIME
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"file": f.file("PROCESSING", mime)})
}

func (f *FakeGemini) handleGetFile(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	f.mu.Lock()
	f.gets++
	state := "ACTIVE"
	if len(f.States) > 0 {
		idx := min(f.gets-1, len(f.States)-1)
		state = f.States[idx]
	}
	mime := f.uploadMIME
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, f.file(state, mime))
}

func (f *FakeGemini) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	f.mu.Lock()
	f.deletes = append(f.deletes, "files/"+r.PathValue("id"))
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{})
}

func (f *FakeGemini) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}
	if !strings.HasSuffix(r.PathValue("call"), ":generateContent") {
		writeGoogleError(w, http.StatusNotFound, "NOT_FOUND", "", "unknown method")
		return
	}

	f.mu.Lock()
	f.generateCalls++
	f.mu.Unlock()

	if f.GenerateStatus != 0 {
		writeGoogleError(w, f.GenerateStatus, "NOT_FOUND", "", "models/x is not found for API version v1beta")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": []any{
			map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": f.Transcript}}},
				"finishReason": "STOP",
			},
		},
	})
}

func (f *FakeGemini) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "bad key", "type": "auth"}})
		return
	}

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	for _, m := range req.Messages {
		f.chatPrompts = append(f.chatPrompts, m.Content)
	}
	f.mu.Unlock()

	if f.ChatStatus != 0 {
		writeJSON(w, f.ChatStatus, map[string]any{"error": map[string]any{"message": "model not found", "type": "invalid_request_error"}})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gemini-test",
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": f.Notes},
				"finish_reason": "stop",
			},
		},
	})
}

func (f *FakeGemini) file(state, mime string) map[string]any {
	return map[string]any{
		"name":     "files/f1",
		"uri":      f.server.URL + "/v1beta/files/f1",
		"mimeType": mime,
		"state":    state,
	}
}

func writeGoogleError(w http.ResponseWriter, status int, code, reason, message string) {
	body := map[string]any{"code": status, "message": message, "status": code}
	if reason != "" {
		body["details"] = []any{map[string]any{"@type": "type.googleapis.com/google.rpc.ErrorInfo", "reason": reason}}
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
