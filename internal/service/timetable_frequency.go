package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const defaultWeeklyFrequency = 3

// frequencyOverrides maps classID -> subjectID -> weekly sessions requested by the caller.
type frequencyOverrides map[string]map[string]float64

func overridesFromOptions(opts dto.GenerateOptions) frequencyOverrides {
	overrides := make(frequencyOverrides)
	for _, class := range opts.Classes {
		for _, subject := range class.Subjects {
			if subject.Frequency <= 0 {
				continue
			}
			if overrides[class.ClassID] == nil {
				overrides[class.ClassID] = make(map[string]float64)
			}
			overrides[class.ClassID][subject.SubjectID] = subject.Frequency
		}
	}
	return overrides
}

// filterByOptions keeps only the class/subject pairs named in the options. A class listed
// without subjects contributes nothing. Without options every assignment participates.
func filterByOptions(assignments []models.TeachingAssignmentDetail, opts dto.GenerateOptions) []models.TeachingAssignmentDetail {
	if len(opts.Classes) == 0 {
		return assignments
	}
	wanted := make(map[string]map[string]struct{}, len(opts.Classes))
	for _, class := range opts.Classes {
		if wanted[class.ClassID] == nil {
			wanted[class.ClassID] = make(map[string]struct{}, len(class.Subjects))
		}
		for _, subject := range class.Subjects {
			wanted[class.ClassID][subject.SubjectID] = struct{}{}
		}
	}

	kept := make([]models.TeachingAssignmentDetail, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := wanted[a.ClassID][a.SubjectID]; ok {
			kept = append(kept, a)
		}
	}
	return kept
}

// weeklyHoursConfig is the decoded form of subjects.weekly_hours_per_class.
type weeklyHoursConfig map[string]float64

// lookup walks class id, class code, class name, then the wildcard keys.
func (c weeklyHoursConfig) lookup(a models.TeachingAssignmentDetail) (float64, bool) {
	for _, key := range []string{a.ClassID, a.ClassCode, a.ClassName, "*", "default"} {
		if key == "" {
			continue
		}
		if hours, ok := c[key]; ok && hours > 0 {
			return hours, true
		}
	}
	return 0, false
}

// parseWeeklyHours accepts a JSON object or a JSON string wrapping one. Values may be
// numbers or numeric strings; anything else is ignored.
func parseWeeklyHours(raw []byte) (weeklyHoursConfig, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("decode weekly hours string: %w", err)
		}
		return parseWeeklyHours([]byte(inner))
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("decode weekly hours object: %w", err)
	}

	cfg := make(weeklyHoursConfig, len(values))
	for key, value := range values {
		if hours, ok := parseHours(value); ok {
			cfg[key] = hours
		}
	}
	return cfg, nil
}

func parseHours(raw json.RawMessage) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, false
	}
	return number, true
}

func roundSessions(value float64) int {
	rounded := int(math.Round(value))
	if rounded < 1 {
		return 1
	}
	return rounded
}

// frequencyResolver derives the weekly session count of a class-subject pair. Decoded
// subject metadata is memoised for the run so malformed values are reported once.
type frequencyResolver struct {
	overrides frequencyOverrides
	logger    *zap.Logger
	parsed    map[string]weeklyHoursConfig
}

func newFrequencyResolver(overrides frequencyOverrides, logger *zap.Logger) *frequencyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &frequencyResolver{overrides: overrides, logger: logger, parsed: make(map[string]weeklyHoursConfig)}
}

func (r *frequencyResolver) resolve(a models.TeachingAssignmentDetail) int {
	if value, ok := r.overrides[a.ClassID][a.SubjectID]; ok && value > 0 {
		return roundSessions(value)
	}

	if hours, ok := r.weeklyHours(a).lookup(a); ok {
		return roundSessions(hours)
	}

	if a.CreditHours != nil && *a.CreditHours > 0 {
		return roundSessions(*a.CreditHours)
	}

	return defaultWeeklyFrequency
}

func (r *frequencyResolver) weeklyHours(a models.TeachingAssignmentDetail) weeklyHoursConfig {
	if cfg, ok := r.parsed[a.SubjectID]; ok {
		return cfg
	}
	var cfg weeklyHoursConfig
	if a.WeeklyHoursPerClass.Valid {
		parsed, err := parseWeeklyHours(a.WeeklyHoursPerClass.JSONText)
		if err != nil {
			r.logger.Warn("invalid weekly hours metadata",
				zap.String("subject_id", a.SubjectID),
				zap.String("subject_name", a.SubjectName),
				zap.Error(err),
			)
		} else {
			cfg = parsed
		}
	}
	r.parsed[a.SubjectID] = cfg
	return cfg
}
