package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"transcripto/internal/config"
	"transcripto/internal/domain"
	"transcripto/internal/services"
	"transcripto/internal/storage"
)

const missingKeyMessage = "GEMINI_API_KEY is missing. Please set it in your environment."

var staticExtensions = map[string]struct{}{
	".html": {}, ".js": {}, ".css": {}, ".map": {},
	".ico": {}, ".png": {}, ".svg": {}, ".woff2": {},
}

type transcriber interface {
	TranscribeFile(ctx context.Context, localPath string) (string, error)
}

type synthesizer interface {
	Synthesize(ctx context.Context, req services.NotesRequest) (domain.NoteResult, error)
}

type chatter interface {
	Reply(ctx context.Context, message, attachedNote string) (string, error)
}

type API struct {
	cfg         config.Config
	log         *log.Logger
	files       *storage.FileManager
	notes       *storage.NoteStore
	profiles    *storage.ProfileStore
	transcriber transcriber
	synthesizer synthesizer
	chat        chatter
	now         func() time.Time
}

func NewAPI(cfg config.Config, logger *log.Logger, fm *storage.FileManager, notes *storage.NoteStore, profiles *storage.ProfileStore,
	tr transcriber, syn synthesizer, chat chatter) *API {
	return &API{
		cfg:         cfg,
		log:         logger,
		files:       fm,
		notes:       notes,
		profiles:    profiles,
		transcriber: tr,
		synthesizer: syn,
		chat:        chat,
		now:         time.Now,
	}
}

func registerRoutes(r *gin.Engine, api *API) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", api.handleHealth)
		apiGroup.POST("/transcribe", api.handleTranscribe)
		apiGroup.GET("/notes", api.handleListNotes)
		apiGroup.GET("/stats", api.handleStats)
		apiGroup.GET("/profile", api.handleGetProfile)
		apiGroup.POST("/profile", api.handleSaveProfile)
		apiGroup.POST("/chat", api.handleChat)
	}

	r.GET("/download/:filename", api.handleDownload)
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login.html")
	})
	r.NoRoute(api.handleStatic)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleTranscribe runs one upload through save, transcription and note
// generation. The temp upload is removed on every path once saved.
func (a *API) handleTranscribe(c *gin.Context) {
	if !a.cfg.HasAPIKey() {
		respondMessage(c, http.StatusUnauthorized, missingKeyMessage)
		return
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondMessage(c, http.StatusBadRequest, "audio file exceeds maximum size")
			return
		}
		respondMessage(c, http.StatusBadRequest, "No audio file part")
		return
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if fileHeader.Filename == "" || filename == "." || filename == "/" {
		respondMessage(c, http.StatusBadRequest, "No selected file")
		return
	}
	if !services.IsAllowedAudio(filename) {
		respondMessage(c, http.StatusBadRequest, "File type not allowed")
		return
	}
	if a.cfg.MaxUploadBytes > 0 && fileHeader.Size > a.cfg.MaxUploadBytes {
		respondMessage(c, http.StatusBadRequest, "audio file exceeds maximum size")
		return
	}

	upload, err := fileHeader.Open()
	if err != nil {
		a.log.Error("open upload", "err", err)
		respondMessage(c, http.StatusInternalServerError, "unable to read uploaded file")
		return
	}
	defer upload.Close()

	audioPath, err := a.files.SaveUpload(upload, filename)
	if err != nil {
		a.fail(c, "saved", err, statusFor(err))
		return
	}
	defer a.files.Remove(audioPath)
	a.log.Info("upload saved", "filename", filename, "size", fileHeader.Size)

	userPrompt := c.PostForm("prompt")
	template := c.PostForm("template")
	ctx := c.Request.Context()

	transcript, err := a.transcriber.TranscribeFile(ctx, audioPath)
	if err != nil {
		a.fail(c, "transcribed", err, remoteStatus(err))
		return
	}

	baseTitle := DisplayTitle(filename)
	if strings.TrimSpace(userPrompt) == "" {
		userPrompt = "Generate notes on this transcript: " + baseTitle
	}

	result, err := a.synthesizer.Synthesize(ctx, services.NotesRequest{
		Transcript: transcript,
		Template:   template,
		Prompt:     userPrompt,
		Title:      baseTitle,
	})
	if err != nil {
		a.fail(c, "notes_generated", err, remoteStatus(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Transcription and notes generated.",
		"title":      result.Title,
		"transcript": transcript,
		"docx_path":  result.DocumentPath,
	})
}

func (a *API) handleListNotes(c *gin.Context) {
	notes, err := a.notes.List()
	if err != nil {
		a.log.Error("list notes", "err", err)
		respondMessage(c, http.StatusInternalServerError, "Failed to list notes: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (a *API) handleStats(c *gin.Context) {
	count, err := a.notes.CountSince(a.now().Add(-7 * 24 * time.Hour))
	if err != nil {
		a.log.Warn("calculate stats", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"notes_this_week": count})
}

func (a *API) handleDownload(c *gin.Context) {
	path, err := a.notes.Path(c.Param("filename"))
	if err != nil {
		respondMessage(c, http.StatusNotFound, "File not found or invalid format")
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (a *API) handleGetProfile(c *gin.Context) {
	profile, err := a.profiles.Load()
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (a *API) handleSaveProfile(c *gin.Context) {
	var profile domain.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := a.profiles.Save(profile); err != nil {
		a.log.Error("save profile", "err", err)
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}

func (a *API) handleChat(c *gin.Context) {
	if !a.cfg.HasAPIKey() {
		respondMessage(c, http.StatusUnauthorized, missingKeyMessage)
		return
	}

	var payload struct {
		Message      string  `json:"message"`
		AttachedNote *string `json:"attached_note"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	if strings.TrimSpace(payload.Message) == "" {
		c.JSON(http.StatusOK, gin.H{"response": "Please type a message."})
		return
	}

	attached := ""
	if payload.AttachedNote != nil {
		attached = *payload.AttachedNote
	}

	reply, err := a.chat.Reply(c.Request.Context(), payload.Message, attached)
	if err != nil {
		a.log.Error("chat failed", "kind", domain.KindOf(err), "err", err)
		respondMessage(c, remoteStatus(err), "An unexpected error occurred with the AI chat: "+domain.Message(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}

// handleStatic serves front-end assets from the static directory.
func (a *API) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		respondMessage(c, http.StatusNotFound, "not found")
		return
	}

	rel := path.Clean("/" + c.Request.URL.Path)
	if _, ok := staticExtensions[strings.ToLower(path.Ext(rel))]; !ok {
		respondMessage(c, http.StatusNotFound, "not found")
		return
	}

	full := filepath.Join(a.cfg.StaticDir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		respondMessage(c, http.StatusNotFound, "not found")
		return
	}
	c.File(full)
}

func (a *API) fail(c *gin.Context, stage string, err error, status int) {
	a.log.Error("transcription request failed", "stage", stage, "kind", domain.KindOf(err), "status", status, "err", err)
	respondMessage(c, status, domain.Message(err))
}

// DisplayTitle turns an upload filename into a human title:
// "team_sync-notes.mp3" becomes "Team Sync Notes".
func DisplayTitle(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return cases.Title(language.Und).String(base)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindBadInput, domain.KindUnsupportedType:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// remoteStatus is used once the upload is accepted: only credential problems
// are the client's concern, everything else is a server failure.
func remoteStatus(err error) int {
	if domain.KindOf(err) == domain.KindUnauthorized {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, status int, err error) {
	respondMessage(c, status, err.Error())
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}
