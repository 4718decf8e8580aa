// Package web serves the rendered catalog pages. All data comes from the
// remote API through the frontend controller; the web layer only renders
// state and translates form posts into controller calls.
package web

import (
	"database/sql"
	"net/http"
	"net/url"
	"sync"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/frontend"
	"github.com/mwierzba/autonajem/internal/session"
	"github.com/mwierzba/autonajem/internal/urlsync"
	"github.com/mwierzba/autonajem/internal/workflow"
	webembed "github.com/mwierzba/autonajem/web"
)

// Navigator is the server-side stand-in for the address bar: it records the
// canonical catalog query string so redirects and page links reproduce it.
type Navigator struct {
	mu      sync.Mutex
	current url.Values
}

// Navigate stores the merged query state.
func (n *Navigator) Navigate(params url.Values) error {
	n.mu.Lock()
	n.current = params
	n.mu.Unlock()
	return nil
}

// Query returns a copy of the last stored query state.
func (n *Navigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return urlsync.Merge(n.current, nil)
}

// CatalogURL builds the canonical catalog URL, optionally overriding
// parameters. A nil override value removes the parameter.
func (n *Navigator) CatalogURL(overrides map[string]*string) string {
	merged := urlsync.Merge(n.Query(), overrides)
	if len(merged) == 0 {
		return "/"
	}
	return "/?" + merged.Encode()
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB         *sql.DB
	Client     *api.Client
	Session    *session.Manager
	Catalog    *frontend.Controller
	Editor     *workflow.Editor
	URLState   *urlsync.Sync
	Nav        *Navigator
	RemoteBase string
	Templates  *Templates
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(s *Server) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	s.Templates = templates

	mux := http.NewServeMux()

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Catalog.
	mux.HandleFunc("GET /{$}", s.CatalogPage)
	mux.HandleFunc("POST /search", s.SearchSubmit)
	mux.HandleFunc("POST /search/clear", s.ClearSearchSubmit)
	mux.HandleFunc("POST /sort", s.SortSubmit)

	// Cars.
	mux.HandleFunc("GET /cars/new", s.CarNewPage)
	mux.HandleFunc("GET /cars/{id}", s.CarDetailPage)
	mux.HandleFunc("GET /cars/{id}/edit", s.CarEditPage)
	mux.HandleFunc("POST /cars/save", s.CarSaveSubmit)
	mux.HandleFunc("POST /cars/{id}/delete", s.CarDeleteSubmit)

	// Rentals.
	mux.HandleFunc("POST /cars/{id}/rent", s.RentSubmit)
	mux.HandleFunc("POST /rentals/{id}/delete", s.RentalDeleteSubmit)

	// Session.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /login/dismiss", s.LoginDismiss)
	mux.HandleFunc("POST /logout", s.Logout)
	mux.HandleFunc("GET /register", s.RegisterPage)
	mux.HandleFunc("POST /register", s.RegisterSubmit)

	// Users (elevated accounts only).
	mux.HandleFunc("GET /users", s.UsersPage)

	return mux, nil
}

// pageData assembles the base template data from the session state. A pending
// login-prompt signal is consumed here and surfaces as the login banner.
func (s *Server) pageData(title string) PageData {
	data := PageData{
		Title:     title,
		User:      s.Session.CurrentUser(),
		LoggedIn:  s.Session.IsLoggedIn(),
		Permitted: s.Session.IsPermitted(),
	}
	select {
	case <-s.Session.LoginRequired():
		data.ShowLogin = true
	default:
	}
	return data
}
