package timetable

import "math"

// Score computes the deterministic quality metric of a schedule. Lower
// penalties are better; Score is clamped to [0, 100].
func Score(schedule *Schedule, subjects []Subject) Stats {
	counts := occurrenceCounts(schedule, subjects)

	var stats Stats
	for _, period := range schedule.Periods {
		if period.IsBreak() {
			continue
		}
		for _, a := range schedule.Grid[period.Index] {
			if a.Kind == AssignmentEmpty {
				stats.EmptySlots++
			}
		}
	}

	for _, subject := range subjects {
		if !subject.Schedulable() {
			continue
		}
		diff := float64(counts[subject.Index] - subject.Target)
		stats.LoadPenalty += diff * diff
	}

	stats.SpreadPenalty = spreadPenalty(schedule, subjects, counts)
	stats.Score = math.Max(0, 100-(float64(stats.EmptySlots)*10+stats.LoadPenalty*2+stats.SpreadPenalty))
	return stats
}

// spreadPenalty counts occurrences on a day beyond the even share
// ceil(count/days) of each subject.
func spreadPenalty(schedule *Schedule, subjects []Subject, counts []int) float64 {
	days := len(schedule.Days)
	if days == 0 {
		return 0
	}
	index := make(map[string]int, len(subjects))
	for _, subject := range subjects {
		index[subject.Name] = subject.Index
	}

	var penalty float64
	for _, day := range schedule.Days {
		daily := make([]int, len(subjects))
		for _, row := range schedule.Grid {
			a := row[day.Index]
			if a.Kind != AssignmentClass {
				continue
			}
			daily[index[a.Subject]]++
		}
		for _, subject := range subjects {
			share := (counts[subject.Index] + days - 1) / days
			if extra := daily[subject.Index] - share; extra > 0 {
				penalty += float64(extra)
			}
		}
	}
	return penalty
}

func occurrenceCounts(schedule *Schedule, subjects []Subject) []int {
	index := make(map[string]int, len(subjects))
	for _, subject := range subjects {
		index[subject.Name] = subject.Index
	}
	counts := make([]int, len(subjects))
	for _, row := range schedule.Grid {
		for _, a := range row {
			if a.Kind != AssignmentClass {
				continue
			}
			if idx, ok := index[a.Subject]; ok {
				counts[idx]++
			}
		}
	}
	return counts
}
