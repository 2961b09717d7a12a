// Package charts builds declarative Vega-Lite chart specifications from
// dashboard aggregates. The browser renders them with vega-embed.
package charts

import (
	"encoding/json"
	"fmt"
	"time"

	"fitness-dashboard/internal/stats"
)

const schemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Spec is a Vega-Lite specification.
type Spec map[string]any

// Weekdays is the vertical order of the consistency heatmap.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func base(title string, height int, values []map[string]any) Spec {
	return Spec{
		"$schema":    schemaURL,
		"title":      title,
		"width":      "container",
		"height":     height,
		"background": "transparent",
		"data":       map[string]any{"values": values},
	}
}

// WorkoutTypes is a donut chart of workouts per type.
func WorkoutTypes(categories []stats.CategoryCount) Spec {
	values := make([]map[string]any, 0, len(categories))
	for _, c := range categories {
		values = append(values, map[string]any{"type": c.Type, "count": c.Count})
	}

	spec := base("Workout Types", 300, values)
	spec["mark"] = map[string]any{"type": "arc", "innerRadius": 50}
	spec["encoding"] = map[string]any{
		"theta": map[string]any{"field": "count", "type": "quantitative"},
		"color": map[string]any{"field": "type", "type": "nominal", "title": "Workout Type"},
		"tooltip": []any{
			map[string]any{"field": "type", "type": "nominal"},
			map[string]any{"field": "count", "type": "quantitative"},
		},
	}
	return spec
}

// CaloriesOverTime is a line chart of calories per workout.
func CaloriesOverTime(points []stats.Point) Spec {
	values := make([]map[string]any, 0, len(points))
	for _, p := range points {
		values = append(values, map[string]any{
			"timestamp":      p.Timestamp.Format(time.RFC3339),
			"calories_burnt": p.Calories,
		})
	}

	spec := base("Calories Burnt Over Time", 300, values)
	spec["mark"] = map[string]any{"type": "line", "point": true, "strokeWidth": 3}
	spec["encoding"] = map[string]any{
		"x": map[string]any{"field": "timestamp", "type": "temporal", "title": "Date"},
		"y": map[string]any{"field": "calories_burnt", "type": "quantitative", "title": "Calories Burnt (kcal)"},
		"tooltip": []any{
			map[string]any{"field": "timestamp", "type": "temporal", "title": "Date"},
			map[string]any{"field": "calories_burnt", "type": "quantitative", "title": "Calories"},
		},
	}
	spec["params"] = []any{
		map[string]any{"name": "zoom", "select": "interval", "bind": "scales"},
	}
	return spec
}

// WeekLabel formats an ISO year and week as "2025-W02".
func WeekLabel(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Consistency is a calendar heatmap: ISO week across, weekday down, colored by
// daily calories.
func Consistency(days []stats.Day) Spec {
	values := make([]map[string]any, 0, len(days))
	for _, d := range days {
		values = append(values, map[string]any{
			"date":           d.Date.Format("2006-01-02"),
			"week":           WeekLabel(d.ISOYear, d.ISOWeek),
			"day":            d.Weekday,
			"calories_burnt": d.Calories,
		})
	}

	spec := base("Daily Calories Burned", 220, values)
	spec["mark"] = map[string]any{"type": "rect"}
	spec["encoding"] = map[string]any{
		"x": map[string]any{"field": "week", "type": "ordinal", "title": "Week of Year"},
		"y": map[string]any{"field": "day", "type": "ordinal", "title": "Day of Week", "sort": Weekdays},
		"color": map[string]any{
			"field":  "calories_burnt",
			"type":   "quantitative",
			"legend": map[string]any{"title": "Calories"},
			"scale":  map[string]any{"scheme": "greenblue"},
		},
		"tooltip": []any{
			map[string]any{"field": "date", "type": "temporal", "title": "Date"},
			map[string]any{"field": "calories_burnt", "type": "quantitative", "title": "Calories Burned"},
		},
	}
	return spec
}

// Dashboard holds the chart specs of one dashboard render.
type Dashboard struct {
	WorkoutTypes     Spec `json:"workout_types"`
	CaloriesOverTime Spec `json:"calories_over_time"`
	Consistency      Spec `json:"consistency"`
}

// ForSummary builds every dashboard chart. It returns nil for an empty
// history.
func ForSummary(s stats.Summary) *Dashboard {
	if s.Empty {
		return nil
	}
	return &Dashboard{
		WorkoutTypes:     WorkoutTypes(s.Categories),
		CaloriesOverTime: CaloriesOverTime(s.Series),
		Consistency:      Consistency(s.Daily),
	}
}

// JSON encodes spec for embedding in a page.
func (s Spec) JSON() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
