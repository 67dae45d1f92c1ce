package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type activeEntryLister interface {
	ListActive(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntryDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var timetableExportHeaders = []string{"Day", "Period", "Time", "Class", "Subject", "Teacher", "Room"}

// ExportService renders the active timetable as a downloadable table. Nothing is stored.
type ExportService struct {
	entries   activeEntryLister
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(entries activeEntryLister, validate *validator.Validate, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		entries:   entries,
		csv:       csv,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Export renders the school timetable, optionally narrowed to a class or a teacher.
func (s *ExportService) Export(ctx context.Context, schoolID string, query dto.ExportScheduleQuery) (*dto.ExportedFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	if schoolID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolId is required")
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = dto.ExportFormatCSV
	}

	entries, err := s.entries.ListActive(ctx, models.EntryFilter{SchoolID: schoolID, ClassID: query.ClassID, TeacherID: query.TeacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	dataset := buildTimetableDataset(entries)
	title := exportTitle(query, entries)
	filename := fmt.Sprintf("timetable_%s_%s.%s", exportScope(query), s.now().Format("20060102"), format)

	var (
		content     []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatPDF:
		content, err = s.pdf.Render(dataset, title)
		contentType = export.ContentTypePDF
	default:
		content, err = s.csv.Render(dataset)
		contentType = export.ContentTypeCSV
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	s.logger.Info("timetable exported",
		zap.String("school_id", schoolID),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.ExportedFile{Filename: filename, ContentType: contentType, Content: content}, nil
}

func buildTimetableDataset(entries []models.TimetableEntryDetail) export.Dataset {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		slot := formatEntry(entry)
		rows = append(rows, []string{
			slot.DayName,
			strconv.Itoa(slot.Period),
			slot.Time,
			slot.ClassName,
			slot.SubjectName,
			slot.TeacherName,
			slot.Room,
		})
	}
	return export.Dataset{Headers: timetableExportHeaders, Rows: rows, GroupColumn: 0}
}

func exportScope(query dto.ExportScheduleQuery) string {
	switch {
	case query.ClassID != "":
		return "class_" + query.ClassID
	case query.TeacherID != "":
		return "teacher_" + query.TeacherID
	default:
		return "school"
	}
}

func exportTitle(query dto.ExportScheduleQuery, entries []models.TimetableEntryDetail) string {
	switch {
	case query.ClassID != "" && len(entries) > 0:
		return "Timetable " + entries[0].ClassName
	case query.TeacherID != "" && len(entries) > 0:
		return "Timetable " + entries[0].TeacherName
	default:
		return "School Timetable"
	}
}
