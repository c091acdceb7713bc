package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

const (
	geminiAPIVersion = "v1beta"
	apiKeyHeader     = "x-goog-api-key"
)

// ErrMalformedResponse marks a remote reply whose shape could not be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// FileAPI is the asset side of the remote model service.
type FileAPI interface {
	UploadFile(ctx context.Context, path, mimeType string) (domain.StagedAsset, error)
	GetFile(ctx context.Context, name string) (domain.StagedAsset, error)
	DeleteFile(ctx context.Context, name string) error
}

// ContentGenerator runs a single generateContent call.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, parts []Part) (GenerateResponse, error)
}

type Part struct {
	Text     string    `json:"text,omitempty"`
	FileData *FileData `json:"file_data,omitempty"`
}

type FileData struct {
	MIMEType string `json:"mime_type"`
	FileURI  string `json:"file_uri"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerateResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// FirstText returns the text of the first part of the first candidate.
func (r GenerateResponse) FirstText() (string, error) {
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	c := r.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 {
		return "", fmt.Errorf("%w: candidate has no content parts", ErrMalformedResponse)
	}
	return c.Parts[0].Text, nil
}

// APIError is a non-2xx reply from the Gemini REST API.
type APIError struct {
	StatusCode int
	Status     string
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gemini api error: status %d %s (%s): %s", e.StatusCode, e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("gemini api error: status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Unauthorized reports whether the credential was rejected. Gemini answers a
// bad key with 400 and reason API_KEY_INVALID rather than 401.
func (e *APIError) Unauthorized() bool {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return true
	case e.Reason == "API_KEY_INVALID", e.Reason == "API_KEY_EXPIRED":
		return true
	case e.Status == "UNAUTHENTICATED", e.Status == "PERMISSION_DENIED":
		return true
	}
	return false
}

func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// GeminiClient talks to the Gemini Files and generateContent endpoints.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	reqTimeout time.Duration
	httpClient *http.Client
}

func NewGeminiClient(cfg config.Config) *GeminiClient {
	return &GeminiClient{
		apiKey:     cfg.GeminiAPIKey,
		baseURL:    strings.TrimRight(cfg.GeminiBaseURL, "/"),
		reqTimeout: cfg.RequestTimeout,
		httpClient: &http.Client{},
	}
}

// UploadFile stages a local file using the resumable upload protocol.
func (g *GeminiClient) UploadFile(ctx context.Context, path, mimeType string) (domain.StagedAsset, error) {
	if err := g.ensureAPIKey(); err != nil {
		return domain.StagedAsset{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("stat audio file: %w", err)
	}

	meta, err := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": filepath.Base(path)},
	})
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("encode upload metadata: %w", err)
	}

	startURL := fmt.Sprintf("%s/upload/%s/files", g.baseURL, geminiAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("create upload start request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(info.Size(), 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := g.do(req)
	if err != nil {
		return domain.StagedAsset{}, err
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return domain.StagedAsset{}, decodeAPIError(resp)
	}
	resp.Body.Close()
	if uploadURL == "" {
		return domain.StagedAsset{}, fmt.Errorf("%w: upload session url missing", ErrMalformedResponse)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, file)
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("create upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err = g.do(req)
	if err != nil {
		return domain.StagedAsset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.StagedAsset{}, decodeAPIError(resp)
	}

	var payload struct {
		File remoteFile `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.StagedAsset{}, fmt.Errorf("%w: decode upload response: %v", ErrMalformedResponse, err)
	}
	if payload.File.Name == "" {
		return domain.StagedAsset{}, fmt.Errorf("%w: upload response has no file name", ErrMalformedResponse)
	}

	return payload.File.asset(), nil
}

// GetFile fetches the current state of a staged file.
func (g *GeminiClient) GetFile(ctx context.Context, name string) (domain.StagedAsset, error) {
	if err := g.ensureAPIKey(); err != nil {
		return domain.StagedAsset{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.resourceURL(name), nil)
	if err != nil {
		return domain.StagedAsset{}, fmt.Errorf("create file status request: %w", err)
	}

	resp, err := g.do(req)
	if err != nil {
		return domain.StagedAsset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return domain.StagedAsset{}, decodeAPIError(resp)
	}

	var file remoteFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return domain.StagedAsset{}, fmt.Errorf("%w: decode file status: %v", ErrMalformedResponse, err)
	}
	return file.asset(), nil
}

func (g *GeminiClient) DeleteFile(ctx context.Context, name string) error {
	if err := g.ensureAPIKey(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.resourceURL(name), nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}

	resp, err := g.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, model string, parts []Part) (GenerateResponse, error) {
	if err := g.ensureAPIKey(); err != nil {
		return GenerateResponse{}, err
	}

	payload := map[string]any{
		"contents": []content{{Role: "user", Parts: parts}},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return GenerateResponse{}, fmt.Errorf("encode generate payload: %w", err)
	}

	model = strings.TrimPrefix(model, "models/")
	url := fmt.Sprintf("%s/%s/models/%s:generateContent", g.baseURL, geminiAPIVersion, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.do(req)
	if err != nil {
		return GenerateResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return GenerateResponse{}, decodeAPIError(resp)
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: decode generate response: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

func (g *GeminiClient) resourceURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", g.baseURL, geminiAPIVersion, strings.TrimPrefix(name, "/"))
}

// do applies the per-call timeout. The timeout stays armed until the caller
// closes the response body.
func (g *GeminiClient) do(req *http.Request) (*http.Response, error) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if g.reqTimeout > 0 {
		ctx, cancel = context.WithTimeout(req.Context(), g.reqTimeout)
	} else {
		ctx, cancel = context.WithCancel(req.Context())
	}
	req = req.WithContext(ctx)
	req.Header.Set(apiKeyHeader, g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (g *GeminiClient) ensureAPIKey() error {
	if g.apiKey == "" {
		return domain.E(domain.KindUnauthorized, "gemini", "GEMINI_API_KEY is missing or not set", nil)
	}
	return nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

type remoteFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
}

func (f remoteFile) asset() domain.StagedAsset {
	state := domain.FileStatePending
	switch strings.ToUpper(f.State) {
	case "ACTIVE":
		state = domain.FileStateActive
	case "FAILED":
		state = domain.FileStateFailed
	}
	return domain.StagedAsset{Name: f.Name, URI: f.URI, MIMEType: f.MIMEType, State: state}
}

func decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
			Details []struct {
				Reason string `json:"reason"`
			} `json:"details"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	out := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		out.Status = apiErr.Error.Status
		out.Message = apiErr.Error.Message
		for _, d := range apiErr.Error.Details {
			if d.Reason != "" {
				out.Reason = d.Reason
				break
			}
		}
		return out
	}

	out.Message = strings.TrimSpace(string(body))
	return out
}

// remoteKind classifies a remote-call error, using fallback unless the
// remote rejected the credential.
func remoteKind(err error, fallback domain.Kind) domain.Kind {
	if k := domain.KindOf(err); k == domain.KindUnauthorized {
		return k
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Unauthorized() {
			return domain.KindUnauthorized
		}
	}
	return fallback
}
