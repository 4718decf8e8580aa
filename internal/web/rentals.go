package web

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/rental"
	"github.com/mwierzba/autonajem/internal/search"
	"github.com/mwierzba/autonajem/internal/workflow"
)

// MsgAlreadyRented is shown when the requested booking collides with an
// existing rental of the same car.
const MsgAlreadyRented = "Samochód jest już wynajęty w wybranym terminie"

// RentSubmit handles POST /cars/{id}/rent. The range is validated and checked
// against the car's existing rentals before anything is sent; back-to-back
// bookings that merely touch at a boundary are allowed.
func (s *Server) RentSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	startDate := r.FormValue("startDate")
	startTime := r.FormValue("startTime")
	endDate := r.FormValue("endDate")
	endTime := rental.ClampEndTime(startDate, startTime, endDate, r.FormValue("endTime"))

	startISO := search.CombineDateTime(startDate, startTime, search.BoundStart)
	endISO := search.CombineDateTime(endDate, endTime, search.BoundEnd)

	if err := rental.ValidateRange(startISO, endISO); err != nil {
		s.redirectCarDetail(w, r, id, err.Error())
		return
	}

	existing, err := s.Client.CarRentals(r.Context(), id)
	if err != nil {
		slog.Warn("failed to list rentals before booking", "car", id, "error", err)
	}
	if rental.HasOverlap(startISO, endISO, existing, 0) {
		s.redirectCarDetail(w, r, id, MsgAlreadyRented)
		return
	}

	payload := api.RentalPayload{StartDate: startISO, EndDate: endISO}
	if err := s.Client.AddRental(r.Context(), id, payload); err != nil {
		slog.Error("failed to add rental", "car", id, "error", err)
		if api.IsUnauthorized(err) {
			s.Session.RequestLoginPrompt()
			s.redirectCarDetail(w, r, id, MsgLoginToBook)
			return
		}
		s.redirectCarDetail(w, r, id, workflow.MsgOperationFailed)
		return
	}

	slog.Info("rental added", "car", id, "start", startISO, "end", endISO)
	http.Redirect(w, r, carDetailURL(id, url.Values{"success": {"Rezerwacja zapisana"}}), http.StatusSeeOther)
}

// RentalDeleteSubmit handles POST /rentals/{id}/delete.
func (s *Server) RentalDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	carID, _ := strconv.ParseInt(r.FormValue("car_id"), 10, 64)

	if err := s.Client.DeleteRental(r.Context(), id); err != nil {
		slog.Error("failed to delete rental", "id", id, "error", err)
		s.redirectCarDetail(w, r, carID, workflow.MsgOperationFailed)
		return
	}

	slog.Info("rental deleted", "id", id)
	http.Redirect(w, r, carDetailURL(carID, nil), http.StatusSeeOther)
}

func (s *Server) redirectCarDetail(w http.ResponseWriter, r *http.Request, id int64, errMsg string) {
	http.Redirect(w, r, carDetailURL(id, url.Values{"error": {errMsg}}), http.StatusSeeOther)
}

// MsgLoginToBook is shown when booking requires a login.
const MsgLoginToBook = "Zaloguj się, aby zarezerwować samochód"

func carDetailURL(id int64, params url.Values) string {
	u := "/cars/" + strconv.FormatInt(id, 10)
	if len(params) == 0 {
		return u
	}
	return u + "?" + params.Encode()
}
