package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// monthWindow returns [start, end) of a calendar month in UTC.
func monthWindow(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// entryVersion is one generation batch: entries sharing created_at.
type entryVersion struct {
	createdAt time.Time
	entries   []models.TimetableEntryDetail
}

// activeUntil is the latest soft-delete time of the batch, nil while any entry is active.
func (v entryVersion) activeUntil() *time.Time {
	var until *time.Time
	for _, e := range v.entries {
		if e.DeletedAt == nil {
			return nil
		}
		if until == nil || e.DeletedAt.After(*until) {
			deleted := *e.DeletedAt
			until = &deleted
		}
	}
	return until
}

// groupVersions buckets entries by created_at, oldest first.
func groupVersions(entries []models.TimetableEntryDetail) []entryVersion {
	index := make(map[int64]int)
	versions := make([]entryVersion, 0)
	for _, e := range entries {
		key := e.CreatedAt.UnixMicro()
		pos, ok := index[key]
		if !ok {
			pos = len(versions)
			index[key] = pos
			versions = append(versions, entryVersion{createdAt: e.CreatedAt})
		}
		versions[pos].entries = append(versions[pos].entries, e)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].createdAt.Before(versions[j].createdAt) })
	return versions
}

// selectVersion picks the newest version created before monthEnd. A version created later
// than the requested month never stands in for it.
func selectVersion(versions []entryVersion, monthEnd time.Time) (*entryVersion, bool) {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].createdAt.Before(monthEnd) {
			return &versions[i], true
		}
	}
	return nil, false
}

// historicalFromEntries resolves the version in force during a month from candidate rows.
// firstVersion is the school's oldest created_at; when it falls after the month the result is
// NOT_YET_CREATED rather than NOT_FOUND.
func historicalFromEntries(schoolID string, year, month int, candidates []models.TimetableEntryDetail, firstVersion *time.Time) (dto.HistoricalSchedule, []models.TimetableEntryDetail) {
	result := dto.HistoricalSchedule{SchoolID: schoolID, Year: year, Month: month}
	_, end := monthWindow(year, month)

	var (
		version *entryVersion
		ok      bool
	)
	if len(candidates) > 0 {
		version, ok = selectVersion(groupVersions(candidates), end)
	}
	if !ok {
		if firstVersion != nil && !firstVersion.Before(end) {
			result.Status = dto.HistoricalStatusNotYetCreated
			result.Message = fmt.Sprintf("No schedule had been created by %04d-%02d", year, month)
			return result, nil
		}
		result.Status = dto.HistoricalStatusNotFound
		result.Message = "No schedule found for this month"
		return result, nil
	}

	createdAt := version.createdAt
	result.Status = dto.HistoricalStatusFound
	result.VersionDate = &createdAt
	result.ActiveUntil = version.activeUntil()
	result.TotalSlots = len(version.entries)
	result.Schedule = formatEntriesByDayPeriod(version.entries)
	return result, version.entries
}

type slotKey struct {
	classID string
	day     int
	period  int
}

// diffEntries compares two snapshots slot by slot, keyed by class, day and period.
func diffEntries(from, to []models.TimetableEntryDetail) (dto.ChangeSummary, dto.ChangeDetails) {
	details := dto.ChangeDetails{
		Added:     []dto.FormattedSlot{},
		Removed:   []dto.FormattedSlot{},
		Modified:  []dto.SlotChange{},
		Unchanged: []dto.FormattedSlot{},
	}

	before := indexBySlot(from)
	after := indexBySlot(to)

	for _, key := range sortedSlotKeys(before, after) {
		old, hadOld := before[key]
		cur, hasCur := after[key]
		switch {
		case hadOld && !hasCur:
			details.Removed = append(details.Removed, formatEntry(old))
		case !hadOld && hasCur:
			details.Added = append(details.Added, formatEntry(cur))
		default:
			fields := changedFields(old, cur)
			if len(fields) == 0 {
				details.Unchanged = append(details.Unchanged, formatEntry(cur))
				continue
			}
			details.Modified = append(details.Modified, dto.SlotChange{
				ClassID: key.classID,
				Day:     key.day,
				DayName: models.DayName(key.day),
				Period:  key.period,
				Fields:  fields,
				From:    formatEntry(old),
				To:      formatEntry(cur),
			})
		}
	}

	summary := dto.ChangeSummary{
		Added:     len(details.Added),
		Removed:   len(details.Removed),
		Modified:  len(details.Modified),
		Unchanged: len(details.Unchanged),
	}
	return summary, details
}

func indexBySlot(entries []models.TimetableEntryDetail) map[slotKey]models.TimetableEntryDetail {
	index := make(map[slotKey]models.TimetableEntryDetail, len(entries))
	for _, e := range entries {
		index[slotKey{classID: e.ClassID, day: e.Day, period: e.Period}] = e
	}
	return index
}

func sortedSlotKeys(sets ...map[slotKey]models.TimetableEntryDetail) []slotKey {
	seen := make(map[slotKey]struct{})
	keys := make([]slotKey, 0)
	for _, set := range sets {
		for key := range set {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.classID != b.classID {
			return a.classID < b.classID
		}
		if a.day != b.day {
			return a.day < b.day
		}
		return a.period < b.period
	})
	return keys
}

func changedFields(old, cur models.TimetableEntryDetail) []string {
	var fields []string
	if old.SubjectID != cur.SubjectID {
		fields = append(fields, "subject")
	}
	if old.TeacherID != cur.TeacherID {
		fields = append(fields, "teacher")
	}
	if roomValue(old.RoomNumber) != roomValue(cur.RoomNumber) {
		fields = append(fields, "room")
	}
	return fields
}

func roomValue(room *string) string {
	if room == nil {
		return ""
	}
	return *room
}

func snapshotRef(h dto.HistoricalSchedule) dto.SnapshotRef {
	return dto.SnapshotRef{
		Year:        h.Year,
		Month:       h.Month,
		Status:      h.Status,
		VersionDate: h.VersionDate,
		TotalSlots:  h.TotalSlots,
	}
}

func versionSummaries(versions []models.ScheduleVersion) []dto.ScheduleVersionSummary {
	summaries := make([]dto.ScheduleVersionSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, dto.ScheduleVersionSummary{
			VersionDate: v.CreatedAt,
			Year:        v.CreatedAt.Year(),
			Month:       int(v.CreatedAt.Month()),
			TotalSlots:  v.TotalSlots,
			ActiveUntil: v.ActiveUntil,
			IsCurrent:   v.IsCurrent,
		})
	}
	return summaries
}
