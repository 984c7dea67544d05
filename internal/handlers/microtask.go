package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mischiefmanager/qualifyfirst-backend/internal/logger"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/middleware"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/repos"
	"github.com/mischiefmanager/qualifyfirst-backend/internal/services"
)

type MicrotaskHandler struct {
	log     *logger.Logger
	taskSvc services.MicrotaskService
}

func NewMicrotaskHandler(log *logger.Logger, taskSvc services.MicrotaskService) *MicrotaskHandler {
	return &MicrotaskHandler{
		log:     log.With("handler", "MicrotaskHandler"),
		taskSvc: taskSvc,
	}
}

// GET /api/microtasks
func (h *MicrotaskHandler) ListAvailable(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	tasks, err := h.taskSvc.AvailableTasks(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("Microtask listing failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"tasks": tasks})
}

// GET /api/microtasks/:id
func (h *MicrotaskHandler) GetTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_task_id", err)
		return
	}

	task, err := h.taskSvc.GetTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repos.ErrMicrotaskNotFound) {
			RespondError(c, http.StatusNotFound, "task_not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "task_failed", err)
		return
	}
	RespondOK(c, task)
}

type submitRequest struct {
	Submission       services.TaskSubmission `json:"submission"`
	TimeSpentSeconds int                     `json:"time_spent_seconds"`
}

// POST /api/microtasks/:id/submit
func (h *MicrotaskHandler) Submit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}
	taskID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_task_id", err)
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_submission", err)
		return
	}

	outcome, err := h.taskSvc.Submit(c.Request.Context(), userID, taskID, req.Submission, req.TimeSpentSeconds)
	if err != nil {
		switch {
		case errors.Is(err, repos.ErrMicrotaskNotFound):
			RespondError(c, http.StatusNotFound, "task_not_found", err)
		case errors.Is(err, services.ErrTaskUnavailable):
			RespondError(c, http.StatusGone, "task_unavailable", err)
		case errors.Is(err, services.ErrAlreadySubmitted):
			RespondError(c, http.StatusConflict, "already_submitted", err)
		case errors.Is(err, services.ErrEmptySubmission), errors.Is(err, services.ErrWrongSubmission):
			RespondError(c, http.StatusBadRequest, "bad_submission", err)
		default:
			h.log.Error("Submission failed", "task_id", taskID, "error", err)
			RespondError(c, http.StatusInternalServerError, "submit_failed", err)
		}
		return
	}
	RespondOK(c, outcome)
}

// GET /api/microtasks/completions
func (h *MicrotaskHandler) ListCompletions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("missing user identity"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	completions, summary, err := h.taskSvc.UserCompletions(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error("Completion listing failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"completions": completions, "summary": summary})
}
