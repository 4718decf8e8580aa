package web

import (
	"log/slog"
	"net/http"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/model"
)

// MsgBadCredentials is shown when the remote API rejects a login.
const MsgBadCredentials = "Nieprawidłowy login lub hasło"

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	if s.Session.IsLoggedIn() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.Templates.Render(w, "login.html", &struct {
		PageData
	}{
		PageData: s.pageData("Logowanie"),
	})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	creds := model.Credentials{
		Login:    r.FormValue("login"),
		Password: r.FormValue("password"),
	}

	if err := s.Session.Login(r.Context(), creds); err != nil {
		msg := MsgBadCredentials
		if !api.IsUnauthorized(err) {
			slog.Error("login failed", "error", err)
			msg = "Logowanie nie powiodło się"
		}

		data := s.pageData("Logowanie")
		data.Error = msg
		s.Templates.Render(w, "login.html", &struct {
			PageData
		}{
			PageData: data,
		})
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LoginDismiss handles POST /login/dismiss: the operator closed the login
// banner without logging in, so the prompt re-arms for the next rejection.
func (s *Server) LoginDismiss(w http.ResponseWriter, r *http.Request) {
	s.Session.PromptClosed()
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

// Logout handles POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Logout(r.Context()); err != nil {
		slog.Error("logout failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterPage handles GET /register.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "register.html", &struct {
		PageData
	}{
		PageData: s.pageData("Rejestracja"),
	})
}

// RegisterSubmit handles POST /register. A created account is not logged in
// automatically; the operator lands on the login page.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	reg := model.Registration{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	if err := s.Session.Register(r.Context(), reg); err != nil {
		slog.Error("registration failed", "error", err)

		data := s.pageData("Rejestracja")
		data.Error = "Rejestracja nie powiodła się"
		s.Templates.Render(w, "register.html", &struct {
			PageData
		}{
			PageData: data,
		})
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
