package web

import (
	"log/slog"
	"net/http"

	"github.com/mwierzba/autonajem/internal/model"
)

// UsersPage handles GET /users. Only permitted accounts may see the user list.
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	if !s.Session.IsPermitted() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	users, err := s.Client.Users(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	data := s.pageData("Użytkownicy")
	if err != nil {
		data.Error = "Nie udało się pobrać użytkowników"
	}

	s.Templates.Render(w, "users.html", &struct {
		PageData
		Users []model.User
	}{
		PageData: data,
		Users:    users,
	})
}
