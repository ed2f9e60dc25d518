// Package web serves a small browser front-end for serve mode: upload a PDF,
// choose pages to remove and whether to scan, then download the result.
package web

import (
	"crypto/subtle"
	"embed"
	"html/template"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/local/scanlike/internal/config"
)

//go:embed templates/*.html
var templates embed.FS

const cookieName = "scanlike_session"

type Web struct {
	tpl      *template.Template
	username string
	password string

	mu       sync.Mutex
	sessions map[string]struct{}
}

// New creates the front-end. With empty credentials the dashboard is open.
func New(username, password string) *Web {
	return &Web{
		tpl:      template.Must(template.ParseFS(templates, "templates/*.html")),
		username: username,
		password: password,
		sessions: map[string]struct{}{},
	}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/web/login", w.handleLogin)
	mux.HandleFunc("/web/logout", w.handleLogout)
	mux.HandleFunc("/web/", w.requireAuth(w.handleDashboard))
}

func (w *Web) render(wr http.ResponseWriter, name string, data any) {
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = w.tpl.ExecuteTemplate(wr, name, data)
}

func (w *Web) authEnabled() bool { return w.username != "" && w.password != "" }

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !w.authEnabled() {
			next(wr, r)
			return
		}
		c, err := r.Cookie(cookieName)
		if err != nil || !w.validSession(c.Value) {
			http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
			return
		}
		next(wr, r)
	}
}

// Protect gates API routes behind the same login as the dashboard. A request
// passes with a live session cookie or matching basic auth credentials;
// anything else gets 401 rather than the login redirect.
func (w *Web) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(wr http.ResponseWriter, r *http.Request) {
		if !w.authEnabled() || w.authorized(r) {
			next(wr, r)
			return
		}
		wr.Header().Set("WWW-Authenticate", `Basic realm="scanlike"`)
		http.Error(wr, "authentication required", http.StatusUnauthorized)
	}
}

func (w *Web) authorized(r *http.Request) bool {
	if c, err := r.Cookie(cookieName); err == nil && w.validSession(c.Value) {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && w.credentialsMatch(user, pass)
}

func (w *Web) credentialsMatch(user, pass string) bool {
	u := subtle.ConstantTimeCompare([]byte(user), []byte(w.username))
	p := subtle.ConstantTimeCompare([]byte(pass), []byte(w.password))
	return u&p == 1
}

func (w *Web) validSession(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[id]
	return ok
}

func (w *Web) handleLogin(wr http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.render(wr, "login.html", map[string]any{"Error": r.URL.Query().Get("error")})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(wr, r, "/web/login?error=invalid+form", http.StatusSeeOther)
			return
		}
		if !w.authEnabled() || !w.credentialsMatch(r.Form.Get("username"), r.Form.Get("password")) {
			http.Redirect(wr, r, "/web/login?error=invalid+credentials", http.StatusSeeOther)
			return
		}
		id := uuid.NewString()
		w.mu.Lock()
		w.sessions[id] = struct{}{}
		w.mu.Unlock()
		http.SetCookie(wr, &http.Cookie{Name: cookieName, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
		http.Redirect(wr, r, "/web/", http.StatusSeeOther)
	default:
		wr.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (w *Web) handleLogout(wr http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(cookieName); err == nil {
		w.mu.Lock()
		delete(w.sessions, c.Value)
		w.mu.Unlock()
	}
	http.SetCookie(wr, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(wr, r, "/web/login", http.StatusSeeOther)
}

func (w *Web) handleDashboard(wr http.ResponseWriter, r *http.Request) {
	w.render(wr, "dashboard.html", map[string]any{
		"Username":   w.username,
		"Auth":       w.authEnabled(),
		"MinDPI":     config.MinDPI,
		"MaxDPI":     config.MaxDPI,
		"DefaultDPI": config.DefaultDPI,
	})
}
