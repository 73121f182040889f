package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"quiz-interaction-service/internal/app"
	"quiz-interaction-service/internal/domain"
)

// UserHeader carries the caller identity set by the session gateway in front of the service.
const UserHeader = "X-User-ID"

type APIHandler struct {
	service *app.InteractionService
	logger  *zap.Logger
}

func NewAPIHandler(service *app.InteractionService, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{service: service, logger: logger}
}

func (h *APIHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/questions/popular", h.Popular)
	r.Get("/questions/{id}", h.GetQuestion)
	r.Post("/questions/{id}/answers", h.CreateAnswer)
	r.Post("/questions/{id}/like", h.ToggleLike)
	r.Post("/questions/{id}/view", h.RecordView)
	r.Get("/users/{id}/statistics", h.Statistics)
	return r
}

type createAnswerRequest struct {
	Content string `json:"content"`
}

type likeResponse struct {
	State      domain.LikeState `json:"state"`
	LikesCount int              `json:"likes_count"`
}

type viewResponse struct {
	FirstView  bool `json:"first_view"`
	ViewsCount int  `json:"views_count"`
}

type questionResponse struct {
	Question   domain.Question `json:"question"`
	LikesCount int             `json:"likes_count"`
	ViewsCount int             `json:"views_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	var req createAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	outcome, err := h.service.CreateAnswer(r.Context(), chi.URLParam(r, "id"), r.Header.Get(UserHeader), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (h *APIHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ToggleLike(r.Context(), chi.URLParam(r, "id"), r.Header.Get(UserHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{State: result.State, LikesCount: result.Count})
}

func (h *APIHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecordView(r.Context(), chi.URLParam(r, "id"), r.Header.Get(UserHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{FirstView: result.FirstView, ViewsCount: result.Count})
}

func (h *APIHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	question, engagement, err := h.service.Question(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{
		Question:   question,
		LikesCount: engagement.Likes,
		ViewsCount: engagement.Views,
	})
}

func (h *APIHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
		limit = n
	}

	top, err := h.service.Popular(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func (h *APIHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
