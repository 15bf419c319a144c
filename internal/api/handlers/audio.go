package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/audiogate/internal/auth"
	"github.com/felixgeelhaar/audiogate/internal/upload"
)

// maxUploadMemory bounds how much of the multipart form is held in
// memory before spilling to disk.
const maxUploadMemory = 10 << 20

// AudioHandler handles audio upload endpoints
type AudioHandler struct {
	sessions *auth.Service
	uploads  *upload.Service
}

// NewAudioHandler creates a new audio handler
func NewAudioHandler(sessions *auth.Service, uploads *upload.Service) *AudioHandler {
	return &AudioHandler{sessions: sessions, uploads: uploads}
}

// UploadResponse describes a stored upload
type UploadResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	UploadedAt  string `json:"uploaded_at"`
}

// Upload validates and stores an uploaded audio file
func (h *AudioHandler) Upload(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token == "" {
		WriteError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, _, err := h.sessions.ValidateSession(r.Context(), token)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	if user == nil {
		WriteError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	receipt, err := h.uploads.Store(r.Context(), user, header.Filename, content)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, UploadResponse{
		Success:     true,
		Filename:    receipt.Filename,
		Key:         receipt.Key,
		ContentType: receipt.ContentType,
		Size:        receipt.Size,
		UploadedAt:  receipt.UploadedAt.Format(time.RFC3339),
	})
}
