package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pavelanni/autograder/internal/model"
)

type uploadResult struct {
	Duplicate  bool                   `json:"duplicate"`
	ResponseID string                 `json:"responseId,omitempty"`
	Response   *model.GradingResponse `json:"response,omitempty"`
}

// handleUploadSubmission grades a submission file sent as multipart form
// data. A file whose content hash matches the last graded upload under the
// same name is not graded again.
func (h *Handler) handleUploadSubmission(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("submission_file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	key := "upload:" + header.Filename
	storedHash, err := h.store.GetGradedFileHash(key)
	if err != nil {
		h.log.Error("failed to check upload status", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if storedHash == hash {
		h.writeJSON(w, http.StatusOK, uploadResult{Duplicate: true})
		return
	}

	var sub model.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, status, err := h.gradeAndSave(r, sub)
	if err != nil {
		h.writeGradeError(w, status, err)
		return
	}

	if err := h.store.SetGradedFileHash(key, hash, resp.ID); err != nil {
		h.log.Error("failed to record upload", "error", err)
	}
	h.log.Info("graded uploaded submission", "filename", header.Filename, "id", resp.ID)

	h.writeJSON(w, http.StatusCreated, uploadResult{ResponseID: resp.ID, Response: resp})
}
