package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"fitness-dashboard/internal/auth"
	"fitness-dashboard/internal/metrics"
	"fitness-dashboard/internal/models"
	"fitness-dashboard/internal/storage"
	"fitness-dashboard/internal/workouts"

	log "github.com/sirupsen/logrus"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// SessionContextKey is the context key for the authenticated session.
	SessionContextKey contextKey = "session"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, token, username string, expiresAt time.Time) error
	ValidateSession(ctx context.Context, token string) (*models.Session, error)
	RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Params holds the dependencies of Handlers.
type Params struct {
	Users        storage.Repository
	Sessions     SessionStore
	Workouts     *workouts.Service
	Hasher       auth.Hasher
	Metrics      *metrics.Manager
	TemplateDir  string
	SecureCookie bool
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	users        storage.Repository
	sessions     SessionStore
	workouts     *workouts.Service
	hasher       auth.Hasher
	metrics      *metrics.Manager
	templateDir  string
	secureCookie bool
	now          func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p Params) *Handlers {
	hasher := p.Hasher
	if hasher == nil {
		hasher = auth.SHA256Hasher{}
	}
	m := p.Metrics
	if m == nil {
		m = metrics.NewTestManager()
	}
	return &Handlers{
		users:        p.Users,
		sessions:     p.Sessions,
		workouts:     p.Workouts,
		hasher:       hasher,
		metrics:      m,
		templateDir:  p.TemplateDir,
		secureCookie: p.SecureCookie,
		now:          time.Now,
	}
}

// GetSessionFromContext retrieves the authenticated session from the request
// context.
func GetSessionFromContext(r *http.Request) *models.Session {
	if s, ok := r.Context().Value(SessionContextKey).(*models.Session); ok {
		return s
	}
	return nil
}

// WithSession returns a copy of r carrying session.
func WithSession(r *http.Request, session *models.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), SessionContextKey, session))
}

// AuthMiddleware wraps page handlers to require authentication, redirecting
// anonymous visitors to the login page.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
}

// APIAuthMiddleware wraps API handlers to require authentication, answering
// 401 for anonymous callers.
func (h *Handlers) APIAuthMiddleware(next http.Handler) http.Handler {
	return h.requireSession(next, func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
	})
}

// requireSession implements rolling sessions: if a session is past the
// halfway point of its lifetime, it is renewed.
func (h *Handlers) requireSession(next http.Handler, reject http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			reject(w, r)
			return
		}

		session, err := h.sessions.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, storage.ErrSessionNotFound) {
				log.Errorf("validate session: %s", err)
			}
			h.clearSessionCookie(w)
			reject(w, r)
			return
		}

		now := h.now()
		if session.ExpiresAt.Sub(now) < SessionDuration/2 {
			newExpiresAt := now.Add(SessionDuration)
			if err := h.sessions.RenewSession(r.Context(), cookie.Value, newExpiresAt); err == nil {
				session.ExpiresAt = newExpiresAt
				h.setSessionCookie(w, cookie.Value)
			} else {
				log.Warnf("renew session for %s: %s", session.Username, err)
			}
		}

		next.ServeHTTP(w, WithSession(r, session))
	})
}

// AuthViewModel holds data for the login and sign-up pages.
type AuthViewModel struct {
	Error    string
	Notice   string
	Username string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.hasValidSession(r) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	vm := AuthViewModel{}
	if r.URL.Query().Get("created") == "1" {
		vm.Notice = "Account created! Please sign in."
	}
	h.render(w, r, "login.html", vm)
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.users.Get(r.Context(), username)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		log.Errorf("login lookup %q: %s", username, err)
	}
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		h.metrics.CounterLogins.WithLabelValues("rejected").Inc()
		h.render(w, r, "login.html", AuthViewModel{Error: "Invalid username or password", Username: username})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		log.Errorf("generate session token: %s", err)
		h.render(w, r, "login.html", AuthViewModel{Error: "An error occurred. Please try again."})
		return
	}

	if err := h.sessions.CreateSession(r.Context(), token, username, h.now().Add(SessionDuration)); err != nil {
		log.Errorf("create session: %s", err)
		h.render(w, r, "login.html", AuthViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.metrics.CounterLogins.WithLabelValues("accepted").Inc()
	log.WithField("user", username).Info("user logged in")
	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// SignupForm renders the sign-up page.
func (h *Handlers) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "signup.html", AuthViewModel{})
}

// Signup validates the sign-up form and creates the account. No record is
// written unless every rule passes.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "signup.html", AuthViewModel{Error: "Invalid form submission"})
		return
	}

	req := auth.SignupRequest{
		Username:        r.FormValue("username"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
	}
	fail := func(msg string) {
		h.render(w, r, "signup.html", AuthViewModel{Error: msg, Username: req.Username})
	}

	err := auth.ValidateSignup(req, func(username string) (bool, error) {
		return storage.Exists(r.Context(), h.users, username)
	})
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(verr.Message)
		return
	case err != nil:
		log.Errorf("signup lookup %q: %s", req.Username, err)
		fail("An error occurred. Please try again.")
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		log.Errorf("hash password: %s", err)
		fail("An error occurred. Please try again.")
		return
	}

	if err := storage.CreateUser(r.Context(), h.users, req.Username, hash); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			fail("Username already exists.")
			return
		}
		h.metrics.CounterStoreSaveFailures.Inc()
		log.Errorf("create user %q: %s", req.Username, err)
		fail(fmt.Sprintf("Error saving data: %s", err))
		return
	}

	h.metrics.CounterSignups.Inc()
	log.WithField("user", req.Username).Info("account created")
	http.Redirect(w, r, "/login?created=1", http.StatusFound)
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.sessions.DeleteSession(r.Context(), cookie.Value); err != nil {
			log.Errorf("delete session: %s", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) hasValidSession(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	_, err = h.sessions.ValidateSession(r.Context(), cookie.Value)
	return err == nil
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	tmpl, err := template.New("base.html").Funcs(templateFuncs).ParseFiles(
		filepath.Join(h.templateDir, "base.html"),
		filepath.Join(h.templateDir, viewName),
	)
	if err != nil {
		log.Errorf("template error: %s", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, target, data); err != nil {
		log.Errorf("template execution error: %s", err)
	}
}

func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
