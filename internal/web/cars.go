package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mwierzba/autonajem/internal/catalog"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/search"
	"github.com/mwierzba/autonajem/internal/store"
)

// carRow is a catalog entry with its resolved photo URL.
type carRow struct {
	catalog.CarView
	PhotoURL string
}

// PageLink is one entry of the pagination strip.
type PageLink struct {
	Number int
	URL    string
	Active bool
}

// CatalogPage handles GET /. The query string is the catalog state; it flows
// through the URL synchronizer so back/forward and pasted URLs restore the
// same view the controller would have produced itself.
func (s *Server) CatalogPage(w http.ResponseWriter, r *http.Request) {
	s.URLState.Notify(r.URL.Query())
	snap := s.Catalog.Snapshot()

	rows := make([]carRow, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		rows = append(rows, carRow{CarView: row, PhotoURL: s.photoURL(r, row.Photo)})
	}

	links := make([]PageLink, 0, snap.TotalPages)
	for page := 1; page <= snap.TotalPages; page++ {
		links = append(links, PageLink{
			Number: page,
			URL:    s.Nav.CatalogURL(map[string]*string{"page": pageOverride(page)}),
			Active: page == snap.Page,
		})
	}

	s.Templates.Render(w, "cars.html", &struct {
		PageData
		Rows       []carRow
		Form       search.FormValue
		Sort       string
		Message    string
		Pages      []PageLink
		Page       int
		TotalPages int
		HasData    bool
	}{
		PageData:   s.pageData("Samochody"),
		Rows:       rows,
		Form:       snap.Form,
		Sort:       snap.Sort,
		Message:    snap.Message,
		Pages:      links,
		Page:       snap.Page,
		TotalPages: snap.TotalPages,
		HasData:    snap.HasData,
	})
}

// SearchSubmit handles POST /search.
func (s *Server) SearchSubmit(w http.ResponseWriter, r *http.Request) {
	form := search.FormValue{
		Search:    r.FormValue("search"),
		MinPrice:  r.FormValue("minPrice"),
		MaxPrice:  r.FormValue("maxPrice"),
		StartDate: r.FormValue("startDate"),
		StartTime: r.FormValue("startTime"),
		EndDate:   r.FormValue("endDate"),
		EndTime:   r.FormValue("endTime"),
		Sort:      r.FormValue("sort"),
	}

	if err := s.Catalog.Search(r.Context(), form); err != nil {
		slog.Warn("search failed", "error", err)
	}
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

// ClearSearchSubmit handles POST /search/clear.
func (s *Server) ClearSearchSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.ClearSearch(r.Context()); err != nil {
		slog.Warn("clearing search failed", "error", err)
	}
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

// SortSubmit handles POST /sort. Without an explicit option the sort toggle
// advances one step.
func (s *Server) SortSubmit(w http.ResponseWriter, r *http.Request) {
	option := r.FormValue("sort")

	var err error
	if option == "" {
		err = s.Catalog.CycleSort()
	} else {
		err = s.Catalog.SetSort(option)
	}
	if err != nil {
		slog.Warn("changing sort failed", "error", err)
	}
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

// CarDetailPage handles GET /cars/{id}.
func (s *Server) CarDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.renderCarDetail(w, r, id, r.URL.Query().Get("error"), r.URL.Query().Get("success"))
}

func (s *Server) renderCarDetail(w http.ResponseWriter, r *http.Request, id int64, errMsg, successMsg string) {
	car, err := s.Client.GetCar(r.Context(), id)
	if err != nil {
		slog.Error("failed to get car", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rentals, err := s.Client.CarRentals(r.Context(), id)
	if err != nil {
		slog.Warn("failed to list rentals", "car", id, "error", err)
	}

	data := s.pageData(car.Brand + " " + car.Model)
	data.Error = errMsg
	data.Success = successMsg

	s.Templates.Render(w, "car_detail.html", &struct {
		PageData
		Car      *model.Car
		PhotoURL string
		Rentals  []model.Rental
	}{
		PageData: data,
		Car:      car,
		PhotoURL: s.photoURL(r, car.Photo),
		Rentals:  rentals,
	})
}

// CarDeleteSubmit handles POST /cars/{id}/delete.
func (s *Server) CarDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := s.Client.DeleteCar(r.Context(), id); err != nil {
		slog.Error("failed to delete car", "id", id, "error", err)
	} else {
		slog.Info("car deleted", "id", id)
	}

	if err := s.Catalog.Refresh(r.Context()); err != nil {
		slog.Warn("refresh after delete failed", "error", err)
	}
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

// photoURL resolves a photo reference against the remote API and appends the
// image version so a replaced photo is not served from a stale cache.
func (s *Server) photoURL(r *http.Request, photo string) string {
	if photo == "" {
		return ""
	}

	u := s.RemoteBase + "/" + strings.TrimLeft(photo, "/")
	version, err := store.ImageVersion(r.Context(), s.DB)
	if err != nil {
		slog.Warn("reading image version", "error", err)
		return u
	}
	if version > 0 {
		u += "?v=" + strconv.FormatInt(version, 10)
	}
	return u
}

func pageOverride(page int) *string {
	if page <= 1 {
		return nil
	}
	s := strconv.Itoa(page)
	return &s
}
