package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/rubric"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/service"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/response"
)

// WorkerHandler exposes the roster and rubric endpoints.
type WorkerHandler struct {
	workers     *service.WorkerService
	evaluations *service.EvaluationService
}

// NewWorkerHandler constructs WorkerHandler.
func NewWorkerHandler(workers *service.WorkerService, evaluations *service.EvaluationService) *WorkerHandler {
	return &WorkerHandler{workers: workers, evaluations: evaluations}
}

// List godoc
// @Summary List workers
// @Tags Workers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workers [get]
func (h *WorkerHandler) List(c *gin.Context) {
	workers, err := h.workers.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workers)
}

// Get godoc
// @Summary Get one worker
// @Tags Workers
// @Produce json
// @Param id path string true "Worker id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /workers/{id} [get]
func (h *WorkerHandler) Get(c *gin.Context) {
	worker, err := h.workers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, worker)
}

// Evaluations godoc
// @Summary List all evaluation versions for a worker
// @Tags Workers
// @Produce json
// @Param id path string true "Worker id"
// @Success 200 {object} response.Envelope
// @Router /workers/{id}/evaluations [get]
func (h *WorkerHandler) Evaluations(c *gin.Context) {
	evals, err := h.evaluations.ListEvaluations(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evals)
}

// Competencies godoc
// @Summary Rubric catalog, optionally filtered by worker group
// @Tags Rubric
// @Produce json
// @Param group query string false "Worker group (GENERAL or TECNICO)"
// @Success 200 {object} response.Envelope
// @Router /competencies [get]
func (h *WorkerHandler) Competencies(c *gin.Context) {
	group := models.WorkerGroup(c.Query("group"))
	if group == "" {
		response.JSON(c, http.StatusOK, rubric.All())
		return
	}
	if !group.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown worker group"))
		return
	}
	response.JSON(c, http.StatusOK, rubric.ForGroup(group))
}
