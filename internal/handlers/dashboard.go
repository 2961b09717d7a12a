package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"fitness-dashboard/internal/charts"
	"fitness-dashboard/internal/models"
	"fitness-dashboard/internal/predictor"
	"fitness-dashboard/internal/stats"
	"fitness-dashboard/internal/storage"
	"fitness-dashboard/internal/workouts"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// MinGoal is the smallest accepted weekly goal in kcal.
const MinGoal = 500.0

// RecentLimit caps the workouts listed under "Recent workouts".
const RecentLimit = 20

// WorkoutTypeDef defines the display properties of a workout type.
type WorkoutTypeDef struct {
	Name  string
	Icon  string
	Color string
}

var workoutTypes = []WorkoutTypeDef{
	{"Cardio", "🏃", "#f472b6"},
	{"Strength Training", "🏋️", "#60a5fa"},
	{"Yoga", "🧘", "#a78bfa"},
	{"Sports", "⚽", "#34d399"},
	{"Other", "💪", "#fbbf24"},
}

// WorkoutStyle defines the visual style for a workout type.
type WorkoutStyle struct {
	Icon  string
	Color string
}

func getWorkoutStyle(workoutType string) WorkoutStyle {
	for _, t := range workoutTypes {
		if strings.EqualFold(t.Name, workoutType) {
			return WorkoutStyle{Icon: t.Icon, Color: t.Color}
		}
	}
	return WorkoutStyle{Icon: "📦", Color: "#94a3b8"}
}

// FieldDef describes a numeric input of the workout form.
type FieldDef struct {
	Name    string
	Label   string
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

var workoutFields = []FieldDef{
	{"age", "Age", workouts.AgeRange.Min, workouts.AgeRange.Max, 1, 25},
	{"height", "Height (cm)", workouts.HeightRange.Min, workouts.HeightRange.Max, 1, 170},
	{"weight", "Weight (kg)", workouts.WeightRange.Min, workouts.WeightRange.Max, 1, 65},
	{"duration", "Duration (minutes)", workouts.DurationRange.Min, workouts.DurationRange.Max, 1, 30},
	{"heart_rate", "Heart Rate (bpm)", workouts.HeartRateRange.Min, workouts.HeartRateRange.Max, 1, 100},
	{"body_temp", "Body Temperature (°C)", workouts.BodyTempRange.Min, workouts.BodyTempRange.Max, 0.1, 37},
}

// WorkoutItem represents a workout in the recent list.
type WorkoutItem struct {
	models.WorkoutRecord
	Category     string
	Time         string
	WorkoutStyle WorkoutStyle
}

// WorkoutGroup groups workouts by day.
type WorkoutGroup struct {
	Title string
	Date  string
	Total float64
	Items []WorkoutItem
}

// ChartSpecs holds the JSON-encoded Vega-Lite specs embedded in the page.
type ChartSpecs struct {
	WorkoutTypes     string
	CaloriesOverTime string
	Consistency      string
}

// DashboardViewModel is the data passed to the dashboard template.
type DashboardViewModel struct {
	Username            string
	Notice              string
	Error               string
	GoalError           string
	Empty               bool
	Weekly              stats.WeeklyProgress
	Lifetime            stats.Lifetime
	Charts              *ChartSpecs
	Groups              []WorkoutGroup
	WorkoutTypes        []WorkoutTypeDef
	Fields              []FieldDef
	MinGoal             float64
	PredictionAvailable bool
}

// Dashboard renders the signed-in user's dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, DashboardViewModel{})
}

// UpdateGoal stores a new weekly calorie goal.
func (h *Handlers) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r)

	goal, msg := parseGoal(r)
	if msg != "" {
		h.renderDashboard(w, r, DashboardViewModel{GoalError: msg})
		return
	}

	if err := storage.SetGoal(r.Context(), h.users, session.Username, goal); err != nil {
		h.metrics.CounterStoreSaveFailures.Inc()
		log.Errorf("set goal for %s: %s", session.Username, err)
		h.renderDashboard(w, r, DashboardViewModel{GoalError: fmt.Sprintf("Error saving data: %s", err)})
		return
	}

	log.WithFields(log.Fields{"user": session.Username, "goal": goal}).Debug("goal updated")
	h.renderDashboard(w, r, DashboardViewModel{Notice: "Weekly goal updated."})
}

// parseGoal returns the submitted goal or a user-facing message.
func parseGoal(r *http.Request) (float64, string) {
	if err := r.ParseForm(); err != nil {
		return 0, "Invalid form submission"
	}
	goal, err := strconv.ParseFloat(trimmed(r, "goal"), 64)
	if err != nil || math.IsNaN(goal) || math.IsInf(goal, 0) {
		return 0, "Goal must be a number."
	}
	if goal < MinGoal {
		return 0, fmt.Sprintf("Goal must be at least %s kcal.", formatKcal(MinGoal))
	}
	return goal, ""
}

// LogWorkout estimates and records a workout from the logging form.
func (h *Handlers) LogWorkout(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r)

	in, msg := parseWorkoutForm(r)
	if msg != "" {
		h.renderDashboard(w, r, DashboardViewModel{Error: msg})
		return
	}

	rec, err := h.workouts.Log(r.Context(), session.Username, in)
	if err != nil {
		var inputErr *workouts.InvalidInputError
		msg := "Prediction failed."
		switch {
		case errors.As(err, &inputErr):
			msg = inputErr.Error()
		case errors.Is(err, predictor.ErrModelUnavailable):
			h.metrics.CounterPredictions.WithLabelValues("unavailable").Inc()
			msg = "Prediction failed. Model not loaded."
		case errors.Is(err, storage.ErrUserNotFound):
			msg = "Account not found."
		case errors.Is(err, workouts.ErrSaveFailed):
			h.metrics.CounterStoreSaveFailures.Inc()
			msg = fmt.Sprintf("Error saving data: %s", err)
		default:
			h.metrics.CounterPredictions.WithLabelValues("error").Inc()
		}
		log.WithField("user", session.Username).Warnf("log workout: %s", err)
		h.renderDashboard(w, r, DashboardViewModel{Error: msg})
		return
	}

	h.metrics.CounterPredictions.WithLabelValues("ok").Inc()
	h.metrics.CounterWorkoutsLogged.WithLabelValues(rec.Category()).Inc()
	log.WithFields(log.Fields{
		"user":     session.Username,
		"type":     rec.WorkoutType,
		"calories": rec.CaloriesBurnt,
	}).Info("workout logged")

	h.renderDashboard(w, r, DashboardViewModel{
		Notice: fmt.Sprintf("Estimated Calories Burnt: %.2f kcal", rec.CaloriesBurnt),
	})
}

// parseWorkoutForm returns the submitted workout or a user-facing message.
func parseWorkoutForm(r *http.Request) (workouts.Input, string) {
	if err := r.ParseForm(); err != nil {
		return workouts.Input{}, "Invalid form submission"
	}

	in := workouts.Input{
		WorkoutType: trimmed(r, "workout_type"),
		Features: predictor.Features{
			Gender: predictor.Gender(trimmed(r, "gender")),
		},
	}
	targets := map[string]*float64{
		"age":        &in.Features.Age,
		"height":     &in.Features.HeightCm,
		"weight":     &in.Features.WeightKg,
		"duration":   &in.Features.DurationMin,
		"heart_rate": &in.Features.HeartRateBPM,
		"body_temp":  &in.Features.BodyTempC,
	}
	for _, f := range workoutFields {
		v, err := strconv.ParseFloat(trimmed(r, f.Name), 64)
		if err != nil {
			return workouts.Input{}, fmt.Sprintf("%s must be a number.", f.Label)
		}
		*targets[f.Name] = v
	}
	return in, ""
}

// DashboardResponse is the body of GET /api/dashboard.
type DashboardResponse struct {
	Username string            `json:"username"`
	Empty    bool              `json:"empty"`
	Summary  stats.Summary     `json:"summary"`
	Charts   *charts.Dashboard `json:"charts,omitempty"`
}

// DashboardAPI serves the dashboard aggregates and chart specs as JSON.
func (h *Handlers) DashboardAPI(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r)

	user, err := h.users.Get(r.Context(), session.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Errorf("dashboard api: %s", err)
		writeJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summary := stats.Summarize(user, h.now())
	writeJSON(w, http.StatusOK, DashboardResponse{
		Username: session.Username,
		Empty:    summary.Empty,
		Summary:  summary,
		Charts:   charts.ForSummary(summary),
	})
}

func (h *Handlers) renderDashboard(w http.ResponseWriter, r *http.Request, vm DashboardViewModel) {
	session := GetSessionFromContext(r)

	user, err := h.users.Get(r.Context(), session.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		log.Errorf("load dashboard for %s: %s", session.Username, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	now := h.now()
	summary := stats.Summarize(user, now)

	vm.Username = session.Username
	vm.Empty = summary.Empty
	vm.Weekly = summary.Weekly
	vm.Lifetime = summary.Lifetime
	vm.WorkoutTypes = workoutTypes
	vm.Fields = workoutFields
	vm.MinGoal = MinGoal
	vm.PredictionAvailable = h.workouts.PredictionAvailable()

	if !summary.Empty {
		specs, err := encodeCharts(charts.ForSummary(summary))
		if err != nil {
			log.Errorf("encode charts: %s", err)
		} else {
			vm.Charts = specs
		}
		vm.Groups = groupRecent(user.History, now)
	}

	h.render(w, r, "dashboard.html", vm)
}

func encodeCharts(d *charts.Dashboard) (*ChartSpecs, error) {
	out := &ChartSpecs{}
	for _, c := range []struct {
		spec charts.Spec
		dst  *string
	}{
		{d.WorkoutTypes, &out.WorkoutTypes},
		{d.CaloriesOverTime, &out.CaloriesOverTime},
		{d.Consistency, &out.Consistency},
	} {
		s, err := c.spec.JSON()
		if err != nil {
			return nil, err
		}
		*c.dst = s
	}
	return out, nil
}

// groupRecent returns the latest workouts grouped by local day, newest first.
func groupRecent(history []models.WorkoutRecord, now time.Time) []WorkoutGroup {
	type dated struct {
		rec models.WorkoutRecord
		ts  time.Time
	}
	items := make([]dated, 0, len(history))
	for _, rec := range history {
		ts, err := rec.Time(now.Location())
		if err != nil {
			continue
		}
		items = append(items, dated{rec, ts})
	}
	slices.SortStableFunc(items, func(a, b dated) int {
		return b.ts.Compare(a.ts)
	})
	if len(items) > RecentLimit {
		items = items[:RecentLimit]
	}

	var groups []WorkoutGroup
	for _, it := range items {
		dateStr := it.ts.Format("2006-01-02")
		if len(groups) == 0 || groups[len(groups)-1].Date != dateStr {
			groups = append(groups, WorkoutGroup{
				Title: formatGroupTitle(it.ts, now),
				Date:  dateStr,
			})
		}
		g := &groups[len(groups)-1]
		g.Total += it.rec.CaloriesBurnt
		g.Items = append(g.Items, WorkoutItem{
			WorkoutRecord: it.rec,
			Category:      it.rec.Category(),
			Time:          it.ts.Format("15:04"),
			WorkoutStyle:  getWorkoutStyle(it.rec.WorkoutType),
		})
	}
	return groups
}

func formatGroupTitle(date, now time.Time) string {
	dateStr := date.Format("2006-01-02")
	if dateStr == now.Format("2006-01-02") {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format("2006-01-02") {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}

// formatKcal renders a calorie amount with thousands separators and no
// decimals, e.g. 12,345.
func formatKcal(v float64) string {
	return humanize.FormatFloat("#,###.", math.Round(v))
}

// formatKcalTenths renders v with thousands separators and one decimal.
func formatKcalTenths(v float64) string {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(math.Abs(v), 'f', 1, 64), ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	sign := ""
	if v < 0 && (n != 0 || frac != "0") {
		sign = "-"
	}
	return sign + humanize.Comma(n) + "." + frac
}

var templateFuncs = template.FuncMap{
	"kcal":  formatKcal,
	"kcal1": formatKcalTenths,
	"num": func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	},
	"decimal": func(v float64) string {
		return humanize.FormatFloat("#,###.##", v)
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("write json: %s", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
