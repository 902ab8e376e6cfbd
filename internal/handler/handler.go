package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pavelanni/autograder/internal/grading"
	appI18n "github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
	"github.com/pavelanni/autograder/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine *grading.Engine
	store  *store.Store
	lang   string
	log    *slog.Logger
}

// New creates a new Handler. lang is the feedback language used when a
// request carries no Accept-Language header.
func New(e *grading.Engine, s *store.Store, lang string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if lang == "" {
		lang = "en"
	}
	return &Handler{engine: e, store: s, lang: lang, log: log}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(appI18n.Middleware(h.lang))
		r.Post("/grade", h.handleGrade)
		r.Post("/grade/upload", h.handleUploadSubmission)
		r.Get("/results", h.handleListResults)
		r.Get("/results/{id}", h.handleGetResult)
	})
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	resp, status, err := h.gradeAndSave(r, sub)
	if err != nil {
		h.writeGradeError(w, status, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// gradeAndSave grades a submission and persists the response. On failure it
// returns the HTTP status to report.
func (h *Handler) gradeAndSave(r *http.Request, sub model.Submission) (*model.GradingResponse, int, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	resp, err := h.engine.Grade(r.Context(), sub.Questions, sub.Answers, nil)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	resp.ID = sub.ID

	if err := h.store.SaveResponse(*resp); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, http.StatusConflict, err
		}
		h.log.Error("failed to save response", "id", resp.ID, "error", err)
		return nil, http.StatusInternalServerError, errors.New("failed to save response")
	}

	h.log.Info("graded submission", "id", resp.ID, "score", resp.TotalScore, "max", resp.MaxScore)
	return resp, http.StatusCreated, nil
}

func (h *Handler) writeGradeError(w http.ResponseWriter, status int, err error) {
	var invalid *grading.InvalidInputError
	if errors.As(err, &invalid) {
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Fields: invalid.Fields})
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	responses, err := h.store.ListResponses(limit, offset)
	if err != nil {
		h.log.Error("failed to list responses", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list responses")
		return
	}
	if responses == nil {
		responses = []model.GradingResponse{}
	}
	h.writeJSON(w, http.StatusOK, responses)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := h.store.GetResponse(id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "response not found")
		return
	}
	if err != nil {
		h.log.Error("failed to get response", "id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get response")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
