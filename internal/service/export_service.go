package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
	"github.com/noah-isme/section-swap-api/pkg/export"
)

type eligibleStudentLister interface {
	ListEligible(ctx context.Context, batch, excludeID string) ([]models.Student, error)
}

type matchFlagProvider interface {
	CheckAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// MatchExport carries a rendered match listing.
type MatchExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// MatchExportService renders the annotated match listing as CSV or PDF for
// administrative distribution.
type MatchExportService struct {
	students eligibleStudentLister
	flags    matchFlagProvider
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewMatchExportService constructs the export service.
func NewMatchExportService(students eligibleStudentLister, flags matchFlagProvider, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *MatchExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchExportService{students: students, flags: flags, csv: csv, pdf: pdf, logger: logger}
}

// Render builds the listing for one batch and renders it in the requested
// format.
func (s *MatchExportService) Render(ctx context.Context, batch, format string) (*MatchExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	flags, err := s.flags.CheckAllMatches(ctx, batch)
	if err != nil {
		return nil, err
	}
	students, err := s.students.ListEligible(ctx, batch, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students for export")
	}

	dataset := export.Dataset{
		Headers: []string{"NIS", "Name", "Batch", "Current Section", "Desired Sections", "Has Match"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"NIS":              student.NIS,
			"Name":             student.FullName,
			"Batch":            student.Cohort(),
			"Current Section":  student.CurrentSection,
			"Desired Sections": strings.Join(student.DesiredSections, ", "),
			"Has Match":        strconv.FormatBool(flags[student.ID]),
		})
	}

	label := batch
	if label == "" {
		label = "all"
	}
	filename := fmt.Sprintf("match-report-%s-%s.%s", label, time.Now().UTC().Format("20060102"), format)

	switch format {
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Section swap availability (%s)", label))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &MatchExport{Content: content, ContentType: "application/pdf", Filename: filename}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &MatchExport{Content: content, ContentType: "text/csv", Filename: filename}, nil
	}
}
