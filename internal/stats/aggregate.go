// Package stats derives dashboard aggregates from a user's workout history.
// Every function is pure and recomputes from the full history.
package stats

import (
	"math"
	"sort"
	"time"

	"fitness-dashboard/internal/models"
)

// WeeklyProgress is the calorie total since the start of the current week
// measured against the weekly goal.
type WeeklyProgress struct {
	WeekStart time.Time `json:"week_start"`
	Calories  float64   `json:"calories"`
	Goal      float64   `json:"goal"`
	Ratio     float64   `json:"ratio"`
}

// Percent returns the ratio as a whole percentage.
func (w WeeklyProgress) Percent() int {
	return int(math.Round(w.Ratio * 100))
}

// Lifetime holds the all-time KPIs.
type Lifetime struct {
	TotalCalories float64 `json:"total_calories"`
	TotalDuration float64 `json:"total_duration"`
	Workouts      int     `json:"workouts"`
	AvgCalories   float64 `json:"avg_calories"`
}

// CategoryCount is the number of workouts of one type.
type CategoryCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Point is one entry of the calories time series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Calories  float64   `json:"calories_burnt"`
}

// Day is one cell of the daily consistency grid.
type Day struct {
	Date     time.Time `json:"date"`
	Calories float64   `json:"calories_burnt"`
	ISOYear  int       `json:"year"`
	ISOWeek  int       `json:"week"`
	Weekday  string    `json:"day"`
}

// StartOfWeek returns Monday 00:00 of the week containing now, in now's
// location.
func StartOfWeek(now time.Time) time.Time {
	offset := (int(now.Weekday()) + 6) % 7
	return time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, now.Location())
}

// Weekly sums calories logged at or after the start of now's week. The ratio
// is capped at 1. A non-positive goal falls back to models.DefaultGoal.
func Weekly(history []models.WorkoutRecord, goal float64, now time.Time) WeeklyProgress {
	if goal <= 0 {
		goal = models.DefaultGoal
	}
	start := StartOfWeek(now)

	var sum float64
	for _, w := range history {
		ts, err := w.Time(now.Location())
		if err != nil {
			continue
		}
		if !ts.Before(start) {
			sum += w.CaloriesBurnt
		}
	}

	return WeeklyProgress{
		WeekStart: start,
		Calories:  sum,
		Goal:      goal,
		Ratio:     math.Min(sum/goal, 1.0),
	}
}

// LifetimeKPIs totals the whole history. The average is zero for an empty
// history.
func LifetimeKPIs(history []models.WorkoutRecord) Lifetime {
	var l Lifetime
	for _, w := range history {
		l.TotalCalories += w.CaloriesBurnt
		l.TotalDuration += w.Duration
	}
	l.Workouts = len(history)
	if l.Workouts > 0 {
		l.AvgCalories = l.TotalCalories / float64(l.Workouts)
	}
	return l
}

// Categories counts workouts per type, most frequent first. Records without a
// type are counted as models.Uncategorized.
func Categories(history []models.WorkoutRecord) []CategoryCount {
	counts := make(map[string]int)
	for _, w := range history {
		counts[w.Category()]++
	}

	out := make([]CategoryCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, CategoryCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// TimeSeries returns (timestamp, calories) pairs in chronological order.
// Records with unparsable timestamps are skipped.
func TimeSeries(history []models.WorkoutRecord, loc *time.Location) []Point {
	points := make([]Point, 0, len(history))
	for _, w := range history {
		ts, err := w.Time(loc)
		if err != nil {
			continue
		}
		points = append(points, Point{Timestamp: ts, Calories: w.CaloriesBurnt})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// DailyGrid sums calories per calendar date in loc. Every date between the
// first and last workout is present; days without workouts have zero
// calories.
func DailyGrid(history []models.WorkoutRecord, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}

	totals := make(map[civilDate]float64)
	var first, last time.Time
	for _, p := range TimeSeries(history, loc) {
		day := time.Date(p.Timestamp.Year(), p.Timestamp.Month(), p.Timestamp.Day(), 0, 0, 0, 0, loc)
		totals[dateOf(day)] += p.Calories
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}
	if len(totals) == 0 {
		return nil
	}

	var days []Day
	for d := first; !d.After(last); d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc) {
		year, week := d.ISOWeek()
		days = append(days, Day{
			Date:     d,
			Calories: totals[dateOf(d)],
			ISOYear:  year,
			ISOWeek:  week,
			Weekday:  d.Weekday().String(),
		})
	}
	return days
}

// Summary bundles every dashboard aggregate for one user.
type Summary struct {
	Empty      bool            `json:"empty"`
	Weekly     WeeklyProgress  `json:"weekly"`
	Lifetime   Lifetime        `json:"lifetime"`
	Categories []CategoryCount `json:"categories"`
	Series     []Point         `json:"series"`
	Daily      []Day           `json:"daily"`
}

// Summarize computes all aggregates for user as of now. For an empty history
// only the weekly goal is populated and Empty is set.
func Summarize(user *models.User, now time.Time) Summary {
	goal := user.WeeklyGoal()
	if len(user.History) == 0 {
		return Summary{
			Empty:  true,
			Weekly: WeeklyProgress{WeekStart: StartOfWeek(now), Goal: goal},
		}
	}

	loc := now.Location()
	return Summary{
		Weekly:     Weekly(user.History, goal, now),
		Lifetime:   LifetimeKPIs(user.History),
		Categories: Categories(user.History),
		Series:     TimeSeries(user.History, loc),
		Daily:      DailyGrid(user.History, loc),
	}
}
