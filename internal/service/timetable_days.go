package service

import "github.com/noah-isme/sma-timetable-api/internal/models"

// dayLoad counts the sessions a class already has planned on each day.
type dayLoad [models.DaysPerWeek]int

// selectDays picks frequency days for a subject, least loaded first with ties going to the
// earlier day. The first min(frequency, 6) picks are distinct; later picks may repeat.
// Picks are committed to load so the class's next subject sees them.
func selectDays(frequency int, load *dayLoad) []int {
	if frequency <= 0 {
		return nil
	}
	days := make([]int, 0, frequency)
	var used [models.DaysPerWeek]bool
	for len(days) < frequency {
		distinct := len(days) < models.DaysPerWeek
		best := -1
		for day := 0; day < models.DaysPerWeek; day++ {
			if distinct && used[day] {
				continue
			}
			if best == -1 || load[day] < load[best] {
				best = day
			}
		}
		days = append(days, best)
		used[best] = true
		load[best]++
	}
	return days
}
