package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"bibliotech/internal/service"

	"github.com/google/uuid"
)

const googleStateCookie = "bibliotech_oauth_state"

type authedHandler func(w http.ResponseWriter, r *http.Request, p *service.Principal)

// authed requires a valid bearer token on an open session.
func (s *HTTPServer) authed(next authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		p, err := s.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next(w, r, p)
	})
}

// admin is authed restricted to the admin role.
func (s *HTTPServer) admin(next authedHandler) http.Handler {
	return s.authed(func(w http.ResponseWriter, r *http.Request, p *service.Principal) {
		if !p.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r, p)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

type registerRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGoogleStart redirects to the consent screen with a random state
// kept in a short-lived cookie.
func (s *HTTPServer) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	url, err := s.svc.Auth.GoogleAuthURL(state)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     googleStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *HTTPServer) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(googleStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: googleStateCookie, Path: "/api/auth/google", MaxAge: -1})

	res, err := s.svc.Auth.GoogleLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	if err := s.svc.Auth.Logout(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	user, err := s.svc.Auth.Me(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleHeartbeat(w http.ResponseWriter, r *http.Request, p *service.Principal) {
	if err := s.svc.Auth.Heartbeat(r.Context(), p); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
