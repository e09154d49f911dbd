package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/dto"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/service"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/response"
)

// EvaluationHandler exposes the editing-session and evaluation endpoints.
type EvaluationHandler struct {
	lifecycle *service.EvaluationService
	exports   *service.ExportService
}

// NewEvaluationHandler constructs EvaluationHandler.
func NewEvaluationHandler(lifecycle *service.EvaluationService, exports *service.ExportService) *EvaluationHandler {
	return &EvaluationHandler{lifecycle: lifecycle, exports: exports}
}

// StartSession godoc
// @Summary Open an editing session
// @Tags Sessions
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *EvaluationHandler) StartSession(c *gin.Context) {
	state, err := h.lifecycle.StartSession(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// GetState godoc
// @Summary Current session state
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *EvaluationHandler) GetState(c *gin.Context) {
	state, err := h.lifecycle.GetState(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// EndSession godoc
// @Summary Close an editing session
// @Tags Sessions
// @Param id path string true "Session id"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *EvaluationHandler) EndSession(c *gin.Context) {
	if err := h.lifecycle.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SelectWorker godoc
// @Summary Point the session at a worker and period
// @Description Hydrates the stored evaluation when one exists. Responds 404
// @Description with code EVALUATION_NOT_FOUND when the pair has none; the
// @Description selection is kept so a later edit or explicit create works.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.SelectWorkerRequest true "Worker and period"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/worker [post]
func (h *EvaluationHandler) SelectWorker(c *gin.Context) {
	var req dto.SelectWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid worker selection payload"))
		return
	}
	state, err := h.lifecycle.SelectWorker(c.Request.Context(), c.Param("id"), req.WorkerID, req.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// CreateEvaluation godoc
// @Summary Explicitly create a new evaluation version
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 201 {object} response.Envelope
// @Router /sessions/{id}/evaluations [post]
func (h *EvaluationHandler) CreateEvaluation(c *gin.Context) {
	state, err := h.lifecycle.CreateEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, state)
}

// Load godoc
// @Summary Hydrate the session from a stored evaluation
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Param evaluationId path string true "Evaluation id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/load/{evaluationId} [post]
func (h *EvaluationHandler) Load(c *gin.Context) {
	state, err := h.lifecycle.LoadByID(c.Request.Context(), c.Param("id"), c.Param("evaluationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// UpdateCriterion godoc
// @Summary Toggle one checklist criterion
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.CriterionUpdateRequest true "Criterion update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/criteria [put]
func (h *EvaluationHandler) UpdateCriterion(c *gin.Context) {
	var req dto.CriterionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid criterion payload"))
		return
	}
	state, err := h.lifecycle.UpdateCriterion(c.Request.Context(), c.Param("id"),
		req.ConductID, req.Tramo, *req.CriterionIndex, *req.Checked)
	if err != nil {
		if state != nil {
			response.ErrorWithData(c, err, state)
		} else {
			response.Error(c, err)
		}
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// UpdateEvidence godoc
// @Summary Set the evidence text for a conduct
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.EvidenceUpdateRequest true "Evidence update"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/evidence [put]
func (h *EvaluationHandler) UpdateEvidence(c *gin.Context) {
	var req dto.EvidenceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evidence payload"))
		return
	}
	state, err := h.lifecycle.UpdateEvidence(c.Request.Context(), c.Param("id"), req.ConductID, req.Text)
	if err != nil {
		if state != nil {
			response.ErrorWithData(c, err, state)
		} else {
			response.Error(c, err)
		}
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// SetScoringMode godoc
// @Summary Switch between standard and seven-point first-tier scoring
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.ScoringModeRequest true "Scoring mode"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/scoring-mode [put]
func (h *EvaluationHandler) SetScoringMode(c *gin.Context) {
	var req dto.ScoringModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scoring mode payload"))
		return
	}
	state, err := h.lifecycle.SetScoringMode(c.Request.Context(), c.Param("id"), *req.UseT1SevenPoints)
	if err != nil {
		if state != nil {
			response.ErrorWithData(c, err, state)
		} else {
			response.Error(c, err)
		}
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// SetAutoSave godoc
// @Summary Toggle autosave
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session id"
// @Param payload body dto.AutoSaveRequest true "Autosave flag"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/settings [put]
func (h *EvaluationHandler) SetAutoSave(c *gin.Context) {
	var req dto.AutoSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	state, err := h.lifecycle.SetAutoSave(c.Request.Context(), c.Param("id"), *req.AutoSave)
	if err != nil {
		if state != nil {
			response.ErrorWithData(c, err, state)
		} else {
			response.Error(c, err)
		}
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// UploadFiles godoc
// @Summary Attach evidence files to a conduct
// @Tags Sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session id"
// @Param conductId path string true "Conduct id"
// @Param files formData file true "Evidence files"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/files/{conductId} [post]
func (h *EvaluationHandler) UploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no files in payload"))
		return
	}

	uploads := make([]service.FileUpload, 0, len(headers))
	var opened []interface{ Close() error }
	defer func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}
	}()
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file "+header.Filename))
			return
		}
		opened = append(opened, file)
		uploads = append(uploads, service.FileUpload{
			OriginalName: header.Filename,
			MimeType:     header.Header.Get("Content-Type"),
			SizeBytes:    header.Size,
			Reader:       file,
		})
	}

	state, err := h.lifecycle.AddFiles(c.Request.Context(), c.Param("id"), c.Param("conductId"), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// RemoveFile godoc
// @Summary Permanently delete an evidence file
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Param fileId path string true "File id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/files/{fileId} [delete]
func (h *EvaluationHandler) RemoveFile(c *gin.Context) {
	state, err := h.lifecycle.RemoveFile(c.Request.Context(), c.Param("id"), c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// Save godoc
// @Summary Mark the session state as saved
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/save [post]
func (h *EvaluationHandler) Save(c *gin.Context) {
	state, err := h.lifecycle.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		if state != nil {
			response.ErrorWithData(c, err, state)
		} else {
			response.Error(c, err)
		}
		return
	}
	response.JSON(c, http.StatusOK, state)
}

// Changes godoc
// @Summary Report unsaved-changes status
// @Tags Sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/changes [get]
func (h *EvaluationHandler) Changes(c *gin.Context) {
	changed, err := h.lifecycle.DetectChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ChangeDetectionResponse{HasUnsavedChanges: changed})
}

// GetEvaluation godoc
// @Summary Fetch one stored evaluation with all its rows
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	bundle, err := h.lifecycle.GetBundle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bundle)
}

// DeleteEvaluation godoc
// @Summary Delete a stored evaluation version and its files
// @Tags Evaluations
// @Param id path string true "Evaluation id"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) DeleteEvaluation(c *gin.Context) {
	if err := h.lifecycle.DeleteEvaluation(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download an evaluation report
// @Tags Evaluations
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Evaluation id"
// @Param format query string true "Report format (pdf or csv)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /evaluations/{id}/export [get]
func (h *EvaluationHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled"))
		return
	}
	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.FormatPDF))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
