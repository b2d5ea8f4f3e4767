package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/2beens/blogsite/internal/forms"
	"github.com/2beens/blogsite/internal/telemetry/metrics"
	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/internal/users"
	"github.com/2beens/blogsite/internal/web"
	"github.com/2beens/blogsite/pkg"
)

const (
	msgEmailTaken      = "This email has already been registered."
	msgWrongCredential = "Email or password is incorrect."
)

type usersRepo interface {
	Register(ctx context.Context, user *users.User) error
	ByEmail(ctx context.Context, email string) (*users.User, error)
}

type Handler struct {
	usersRepo      usersRepo
	sessions       *Service
	signer         *web.CookieSigner
	renderer       *web.Renderer
	metricsManager *metrics.Manager
	nameCaser      cases.Caser
}

func NewHandler(
	usersRepo usersRepo,
	sessions *Service,
	signer *web.CookieSigner,
	renderer *web.Renderer,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		usersRepo:      usersRepo,
		sessions:       sessions,
		signer:         signer,
		renderer:       renderer,
		metricsManager: metricsManager,
		nameCaser:      cases.Title(language.English),
	}
}

// SetupRoutes registers the account routes. rateLimit guards the credential
// submitting POSTs, requireLogin the routes that need a session.
func (h *Handler) SetupRoutes(router *mux.Router, rateLimit, requireLogin mux.MiddlewareFunc) {
	router.HandleFunc("/register", h.handleRegisterPage).Methods("GET").Name("register-page")
	router.Handle("/register", rateLimit(http.HandlerFunc(h.handleRegister))).Methods("POST").Name("register")
	router.HandleFunc("/login", h.handleLoginPage).Methods("GET").Name("login-page")
	router.Handle("/login", rateLimit(http.HandlerFunc(h.handleLogin))).Methods("POST").Name("login")
	router.Handle("/logout", requireLogin(http.HandlerFunc(h.handleLogout))).Methods("GET").Name("logout")
	router.Handle("/welcome", requireLogin(http.HandlerFunc(h.handleWelcome))).Methods("GET").Name("welcome")
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, &forms.RegisterForm{}, nil)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "auth.register")
	defer span.End()

	form := forms.ParseRegisterForm(r)
	if err := forms.Validate(form); err != nil {
		h.renderRegister(w, r, form, forms.FieldErrors(err))
		return
	}

	passwordHash, err := pkg.HashPassword(form.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		h.renderer.Error(w, r, http.StatusInternalServerError)
		return
	}

	user := &users.User{
		Email:        strings.ToLower(form.Email),
		PasswordHash: passwordHash,
		Name:         h.nameCaser.String(form.Name),
		CreatedAt:    time.Now(),
	}
	if err := h.usersRepo.Register(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			web.AddFlash(r, "error", msgEmailTaken)
			form.Email = ""
			h.renderRegister(w, r, form, nil)
			return
		}
		tracing.RecordError(ctx, err)
		log.Errorf("register user: %s", err)
		h.renderer.Error(w, r, http.StatusInternalServerError)
		return
	}

	h.metricsManager.CounterRegistrations.Inc()
	log.Infof("new user registered: %d [%s], role: %s", user.ID, user.Email, user.Role)

	if err := h.startSession(ctx, w, user); err != nil {
		log.Errorf("register, login new user %d: %s", user.ID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError)
		return
	}

	web.Redirect(w, r, "/welcome", http.StatusFound)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, &forms.LoginForm{}, nil)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "auth.login")
	defer span.End()

	form := forms.ParseLoginForm(r)
	if err := forms.Validate(form); err != nil {
		h.renderLogin(w, r, form, forms.FieldErrors(err))
		return
	}

	user, err := h.usersRepo.ByEmail(ctx, strings.ToLower(form.Email))
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		tracing.RecordError(ctx, err)
		log.Errorf("login, get user by email: %s", err)
		h.renderer.Error(w, r, http.StatusInternalServerError)
		return
	}

	if user == nil || !pkg.CheckPasswordHash(form.Password, user.PasswordHash) {
		h.metricsManager.CounterLogins.WithLabelValues("failed").Inc()
		web.AddFlash(r, "warning", msgWrongCredential)
		form.Email = ""
		h.renderLogin(w, r, form, nil)
		return
	}

	if err := h.startSession(ctx, w, user); err != nil {
		log.Errorf("login user %d: %s", user.ID, err)
		h.renderer.Error(w, r, http.StatusInternalServerError)
		return
	}

	h.metricsManager.CounterLogins.WithLabelValues("ok").Inc()
	web.Redirect(w, r, "/welcome", http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := SessionToken(r, h.signer)
	if err == nil {
		if _, err := h.sessions.Logout(r.Context(), token); err != nil {
			log.Errorf("logout: %s", err)
		}
	}

	h.signer.Clear(w, SessionCookieName)
	web.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) handleWelcome(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "welcome", http.StatusOK, "Welcome", nil)
}

func (h *Handler) startSession(ctx context.Context, w http.ResponseWriter, user *users.User) error {
	token, err := h.sessions.Login(ctx, user.ID, time.Now())
	if err != nil {
		return err
	}
	return SetSessionCookie(w, h.signer, token, h.sessions.TTL())
}

func (h *Handler) renderRegister(w http.ResponseWriter, r *http.Request, form *forms.RegisterForm, errs forms.Errors) {
	h.renderer.Render(w, r, "register", http.StatusOK, "Register", map[string]any{
		"Form":   form,
		"Errors": errs,
	})
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, form *forms.LoginForm, errs forms.Errors) {
	h.renderer.Render(w, r, "login", http.StatusOK, "Log In", map[string]any{
		"Form":   form,
		"Errors": errs,
	})
}
