package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/models"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/internal/rubric"
	appErrors "github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/errors"
	"github.com/kketzal/EVALUACION-DESEMPENO-sub000/pkg/export"
)

// Export formats accepted by the report endpoints.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, meta [][2]string) ([]byte, error)
}

type bundleReader interface {
	GetBundle(ctx context.Context, id string) (*models.EvaluationBundle, error)
}

// ExportService renders a stored evaluation into a downloadable report.
type ExportService struct {
	evaluations bundleReader
	workers     workerRepository
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// ExportResult is the rendered payload plus download metadata.
type ExportResult struct {
	Payload     []byte
	ContentType string
	Filename    string
}

// NewExportService constructs an ExportService.
func NewExportService(evaluations bundleReader, workers workerRepository, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{evaluations: evaluations, workers: workers, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the evaluation report in the requested format.
func (s *ExportService) Generate(ctx context.Context, evaluationID, format string) (*ExportResult, error) {
	bundle, err := s.evaluations.GetBundle(ctx, evaluationID)
	if err != nil {
		return nil, err
	}
	worker, err := s.workers.FindByID(ctx, bundle.Evaluation.WorkerID)
	if err != nil {
		s.logger.Warn("resolve worker for export", zap.String("worker_id", bundle.Evaluation.WorkerID), zap.Error(err))
	}

	dataset := buildEvaluationDataset(bundle, worker)
	eval := bundle.Evaluation

	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, "EXPORT_FAILED", 500, "failed to render CSV report")
		}
		return &ExportResult{
			Payload:     payload,
			ContentType: "text/csv",
			Filename:    exportFilename(eval, "csv"),
		}, nil
	case FormatPDF:
		meta := [][2]string{
			{"Trabajador", workerName(worker, eval.WorkerID)},
			{"Periodo", eval.Period},
			{"Version", strconv.Itoa(eval.Version)},
			{"Generado", time.Now().UTC().Format("2006-01-02 15:04")},
		}
		payload, err := s.pdf.Render(dataset, "Informe de evaluacion", meta)
		if err != nil {
			return nil, appErrors.Wrap(err, "EXPORT_FAILED", 500, "failed to render PDF report")
		}
		return &ExportResult{
			Payload:     payload,
			ContentType: "application/pdf",
			Filename:    exportFilename(eval, "pdf"),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}
}

// buildEvaluationDataset flattens the bundle into one row per conduct with
// the rubric titles, check counts, scores and evidence text.
func buildEvaluationDataset(bundle *models.EvaluationBundle, worker *models.Worker) export.Dataset {
	checks := CriteriaFromRows(bundle.Criteria)
	evidence := EvidenceFromRows(bundle.Evidence)
	scores := ScoresFromRows(bundle.Scores)

	group := models.WorkerGroup("")
	if worker != nil {
		group = worker.Group
	}
	competencies := rubric.All()
	if group.Valid() {
		competencies = rubric.ForGroup(group)
	}

	dataset := export.Dataset{
		Headers: []string{"Competencia", "Conducta", "Criterios T1", "Criterios T2", "Nota T1", "Nota T2", "Nota final", "Evidencia"},
	}
	for _, comp := range competencies {
		for _, conduct := range comp.Conducts {
			score := scores[conduct.ID]
			row := map[string]string{
				"Competencia":  comp.Title,
				"Conducta":     conduct.Description,
				"Criterios T1": fmt.Sprintf("%d", checkedCount(checks[conduct.ID].T1)),
				"Criterios T2": fmt.Sprintf("%d", checkedCount(checks[conduct.ID].T2)),
				"Nota T1":      formatScore(score.T1),
				"Nota T2":      formatScore(score.T2),
				"Nota final":   strconv.Itoa(score.Final),
				"Evidencia":    evidence[conduct.ID],
			}
			dataset.Rows = append(dataset.Rows, row)
		}
	}
	return dataset
}

func checkedCount(criteria []bool) int {
	n := 0
	for _, c := range criteria {
		if c {
			n++
		}
	}
	return n
}

func formatScore(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func workerName(worker *models.Worker, fallbackID string) string {
	if worker != nil {
		return worker.FullName
	}
	return fallbackID
}

func exportFilename(eval models.Evaluation, ext string) string {
	return fmt.Sprintf("evaluacion_%s_%s_v%d.%s", eval.WorkerID, eval.Period, eval.Version, ext)
}
