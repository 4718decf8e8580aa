package web

import (
	"image"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/workflow"
)

// maxFormMemory bounds in-memory multipart parsing; larger photos spill to
// temporary files.
const maxFormMemory = 32 << 20

// CarNewPage handles GET /cars/new.
func (s *Server) CarNewPage(w http.ResponseWriter, r *http.Request) {
	s.Editor.OpenAdd()
	s.renderEditor(w, r, &model.Car{}, "")
}

// CarEditPage handles GET /cars/{id}/edit.
func (s *Server) CarEditPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	car, err := s.Client.GetCar(r.Context(), id)
	if err != nil {
		slog.Error("failed to get car", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Editor.OpenEdit(*car)
	s.renderEditor(w, r, car, "")
}

// CarSaveSubmit handles POST /cars/save for both new and existing cars.
func (s *Server) CarSaveSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	id, _ := strconv.ParseInt(r.FormValue("id"), 10, 64)
	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil {
		price = math.NaN()
	}
	car := model.Car{
		ID:    id,
		Brand: r.FormValue("brand"),
		Model: r.FormValue("model"),
		Price: price,
		Photo: r.FormValue("photo_ref"),
	}

	sub := workflow.Submission{Car: car}
	if file, header, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("failed to read uploaded photo", "error", err)
			s.renderEditor(w, r, &car, workflow.MsgOperationFailed)
			return
		}
		sub.Photo = data
		sub.PhotoName = header.Filename
		sub.Crop = cropRect(r)
	}

	if err := s.Editor.Submit(r.Context(), sub); err != nil {
		s.renderEditor(w, r, &car, s.Editor.Message())
		return
	}

	if err := s.Catalog.Refresh(r.Context()); err != nil {
		slog.Warn("refresh after save failed", "error", err)
	}
	http.Redirect(w, r, s.Nav.CatalogURL(nil), http.StatusSeeOther)
}

func (s *Server) renderEditor(w http.ResponseWriter, r *http.Request, car *model.Car, errMsg string) {
	title := "Nowy samochód"
	if car.ID != 0 {
		title = "Edycja samochodu"
	}

	data := s.pageData(title)
	data.Error = errMsg

	s.Templates.Render(w, "car_edit.html", &struct {
		PageData
		Car      *model.Car
		PhotoURL string
	}{
		PageData: data,
		Car:      car,
		PhotoURL: s.photoURL(r, car.Photo),
	})
}

// cropRect reads the optional crop rectangle the photo picker posts alongside
// the file. All four fields must parse, and the area must be positive.
func cropRect(r *http.Request) *image.Rectangle {
	x, errX := strconv.Atoi(r.FormValue("crop_x"))
	y, errY := strconv.Atoi(r.FormValue("crop_y"))
	width, errW := strconv.Atoi(r.FormValue("crop_w"))
	height, errH := strconv.Atoi(r.FormValue("crop_h"))
	if errX != nil || errY != nil || errW != nil || errH != nil {
		return nil
	}
	if width <= 0 || height <= 0 {
		return nil
	}
	rect := image.Rect(x, y, x+width, y+height)
	return &rect
}
