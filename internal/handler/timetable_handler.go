package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, schoolID, createdBy string, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error)
	Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*dto.ValidationResult, error)
	ValidateCurrent(ctx context.Context, schoolID string) (*dto.ValidationResult, error)
	ClassSchedule(ctx context.Context, schoolID, classID string) (*dto.ClassScheduleResponse, error)
	ClassScheduleByDay(ctx context.Context, schoolID, classID string, day int) (*dto.DayScheduleResponse, error)
	TeacherSchedule(ctx context.Context, schoolID, teacherID string) (*dto.TeacherScheduleResponse, error)
	TeacherScheduleByDay(ctx context.Context, schoolID, teacherID string, day int) (*dto.DayScheduleResponse, error)
	SchoolSchedule(ctx context.Context, schoolID string) (*dto.SchoolScheduleResponse, error)
	Statistics(ctx context.Context, schoolID string) (*dto.ScheduleStatistics, error)
	ClassTeachers(ctx context.Context, schoolID, classID string) ([]dto.ClassTeacher, error)
	Historical(ctx context.Context, schoolID string, year, month int) (*dto.HistoricalSchedule, error)
	ChangeHistory(ctx context.Context, schoolID string, query dto.ChangeHistoryQuery) (*dto.ChangeHistory, error)
	Versions(ctx context.Context, schoolID string) ([]dto.ScheduleVersionSummary, error)
	DeleteSchool(ctx context.Context, schoolID string) (*dto.DeleteScheduleResponse, error)
}

type slotEditor interface {
	Create(ctx context.Context, schoolID, createdBy string, req dto.CreateSlotRequest) (*models.TimetableEntry, error)
	Delete(ctx context.Context, schoolID string, query dto.DeleteSlotQuery) (*dto.DeleteSlotResponse, error)
}

type timetableExporter interface {
	Export(ctx context.Context, schoolID string, query dto.ExportScheduleQuery) (*dto.ExportedFile, error)
}

// TimetableHandler exposes timetable generation, lookup and versioning endpoints.
type TimetableHandler struct {
	timetables timetableService
	slots      slotEditor
	exports    timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetables *service.TimetableService, slots *service.ScheduleSlotService, exports *service.ExportService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, slots: slots, exports: exports}
}

// Generate godoc
// @Summary Generate a new timetable version for a school
// @Description Builds a conflict-free weekly timetable from active teaching assignments and stores it as the new current version. The previous version is kept as history.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generation payload"))
		return
	}
	result, err := h.timetables.Generate(c.Request.Context(), resolveSchoolID(c, req.SchoolID), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ClassSchedule godoc
// @Summary Get the active timetable of a class
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Param schoolId query string false "School ID (defaults to the token's school)"
// @Success 200 {object} response.Envelope
// @Router /schedules/class/{classId} [get]
func (h *TimetableHandler) ClassSchedule(c *gin.Context) {
	result, err := h.timetables.ClassSchedule(c.Request.Context(), resolveSchoolID(c, ""), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClassScheduleByDay godoc
// @Summary Get a class's slots on one day
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Param day path int true "Day index, 0 (Saturday) to 5 (Thursday)"
// @Success 200 {object} response.Envelope
// @Router /schedules/class/{classId}/day/{day} [get]
func (h *TimetableHandler) ClassScheduleByDay(c *gin.Context) {
	day, err := dayParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.timetables.ClassScheduleByDay(c.Request.Context(), resolveSchoolID(c, ""), c.Param("classId"), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ClassTeachers godoc
// @Summary List teachers assigned to a class
// @Tags Timetable
// @Produce json
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/class/{classId}/teachers [get]
func (h *TimetableHandler) ClassTeachers(c *gin.Context) {
	result, err := h.timetables.ClassTeachers(c.Request.Context(), resolveSchoolID(c, ""), c.Param("classId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TeacherSchedule godoc
// @Summary Get the active timetable of a teacher
// @Tags Timetable
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/teacher/{teacherId} [get]
func (h *TimetableHandler) TeacherSchedule(c *gin.Context) {
	result, err := h.timetables.TeacherSchedule(c.Request.Context(), resolveSchoolID(c, ""), c.Param("teacherId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TeacherScheduleByDay godoc
// @Summary Get a teacher's slots on one day
// @Tags Timetable
// @Produce json
// @Param teacherId path string true "Teacher ID"
// @Param day path int true "Day index, 0 (Saturday) to 5 (Thursday)"
// @Success 200 {object} response.Envelope
// @Router /schedules/teacher/{teacherId}/day/{day} [get]
func (h *TimetableHandler) TeacherScheduleByDay(c *gin.Context) {
	day, err := dayParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.timetables.TeacherScheduleByDay(c.Request.Context(), resolveSchoolID(c, ""), c.Param("teacherId"), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SchoolSchedule godoc
// @Summary Get the active timetable of the whole school
// @Tags Timetable
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/school [get]
func (h *TimetableHandler) SchoolSchedule(c *gin.Context) {
	result, err := h.timetables.SchoolSchedule(c.Request.Context(), resolveSchoolID(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Statistics godoc
// @Summary Summarise the active timetable
// @Tags Timetable
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/statistics [get]
func (h *TimetableHandler) Statistics(c *gin.Context) {
	result, err := h.timetables.Statistics(c.Request.Context(), resolveSchoolID(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Historical godoc
// @Summary Get the timetable in force during a month
// @Tags Timetable Versions
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /schedules/historical [get]
func (h *TimetableHandler) Historical(c *gin.Context) {
	var query dto.HistoricalScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid historical query"))
		return
	}
	result, err := h.timetables.Historical(c.Request.Context(), resolveSchoolID(c, query.SchoolID), query.Year, query.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ChangeHistory godoc
// @Summary Compare the timetables in force during two months
// @Tags Timetable Versions
// @Produce json
// @Param fromYear query int true "From year"
// @Param fromMonth query int true "From month"
// @Param toYear query int true "To year"
// @Param toMonth query int true "To month"
// @Success 200 {object} response.Envelope
// @Router /schedules/history [get]
func (h *TimetableHandler) ChangeHistory(c *gin.Context) {
	var query dto.ChangeHistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid history query"))
		return
	}
	result, err := h.timetables.ChangeHistory(c.Request.Context(), resolveSchoolID(c, query.SchoolID), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Versions godoc
// @Summary List stored timetable versions
// @Tags Timetable Versions
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/versions [get]
func (h *TimetableHandler) Versions(c *gin.Context) {
	result, err := h.timetables.Versions(c.Request.Context(), resolveSchoolID(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"total": len(result)})
}

// Validate godoc
// @Summary Validate an arbitrary slot list
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ValidateScheduleRequest true "Slots to check"
// @Success 200 {object} response.Envelope
// @Router /schedules/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.ValidateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validation payload"))
		return
	}
	result, err := h.timetables.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ValidateCurrent godoc
// @Summary Validate the active timetable of the school
// @Tags Timetable
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/validate [get]
func (h *TimetableHandler) ValidateCurrent(c *gin.Context) {
	result, err := h.timetables.ValidateCurrent(c.Request.Context(), resolveSchoolID(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the active timetable as CSV or PDF
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Param classId query string false "Limit to a class"
// @Param teacherId query string false "Limit to a teacher"
// @Success 200 {file} file
// @Router /schedules/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exports.Export(c.Request.Context(), resolveSchoolID(c, query.SchoolID), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// CreateSlot godoc
// @Summary Place or replace a single slot by hand
// @Tags Timetable Slots
// @Accept json
// @Produce json
// @Param payload body dto.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/slot [post]
func (h *TimetableHandler) CreateSlot(c *gin.Context) {
	var req dto.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot payload"))
		return
	}
	entry, err := h.slots.Create(c.Request.Context(), resolveSchoolID(c, req.SchoolID), currentUserID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// DeleteSlot godoc
// @Summary Remove a single slot from the active timetable
// @Tags Timetable Slots
// @Param classId query string true "Class ID"
// @Param day query int true "Day index"
// @Param period query int true "Period"
// @Success 200 {object} response.Envelope
// @Router /schedules/slot [delete]
func (h *TimetableHandler) DeleteSlot(c *gin.Context) {
	var query dto.DeleteSlotQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot query"))
		return
	}
	result, err := h.slots.Delete(c.Request.Context(), resolveSchoolID(c, query.SchoolID), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeleteSchool godoc
// @Summary Permanently delete every timetable version of a school
// @Tags Timetable Versions
// @Produce json
// @Param schoolId query string false "School ID"
// @Success 200 {object} response.Envelope
// @Router /schedules [delete]
func (h *TimetableHandler) DeleteSchool(c *gin.Context) {
	result, err := h.timetables.DeleteSchool(c.Request.Context(), resolveSchoolID(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func dayParam(c *gin.Context) (int, error) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || !models.ValidDay(day) {
		return 0, appErrors.Clone(appErrors.ErrValidation, "day must be an integer between 0 and 5")
	}
	return day, nil
}
