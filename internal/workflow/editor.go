// Package workflow drives the car editor: validate the form, compress and
// upload the photo, then persist the car on the remote API. Each submission
// runs the pipeline once; there are no retries.
package workflow

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/imaging"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/store"
)

// User-facing messages, matching the catalog UI language.
const (
	MsgInvalidForm     = "Podaj poprawną markę, model i cenę"
	MsgFileTooLarge    = "Plik jest za duży. Zmniejsz rozmiar pliku i spróbuj ponownie."
	MsgOperationFailed = "Operacja nie powiodła się"
)

// ErrInvalidForm is returned when the form fails local validation; nothing is
// sent to the remote API in that case.
var ErrInvalidForm = errors.New(MsgInvalidForm)

// State is the editor lifecycle position.
type State int

const (
	StateIdle State = iota
	StateFormOpen
	StateUploading
	StatePersisting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFormOpen:
		return "form-open"
	case StateUploading:
		return "uploading"
	case StatePersisting:
		return "persisting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Submission is one editor submit: the car fields plus an optional new photo.
// When Crop is set the photo is cropped before compression.
type Submission struct {
	Car       model.Car
	Photo     []byte
	PhotoName string
	Crop      *image.Rectangle
}

// Editor runs car create and edit submissions.
type Editor struct {
	client         *api.Client
	db             *sql.DB
	log            *slog.Logger
	maxUploadBytes int

	mu      sync.Mutex
	state   State
	message string
	draft   model.Car
}

// NewEditor creates an editor. maxUploadBytes caps the compressed photo size
// sent to the remote API.
func NewEditor(client *api.Client, db *sql.DB, log *slog.Logger, maxUploadBytes int) *Editor {
	return &Editor{
		client:         client,
		db:             db,
		log:            log,
		maxUploadBytes: maxUploadBytes,
		state:          StateIdle,
	}
}

// OpenAdd opens the form for a new car.
func (e *Editor) OpenAdd() {
	e.mu.Lock()
	e.draft = model.Car{}
	e.mu.Unlock()
	e.setState(StateFormOpen, "")
}

// OpenEdit opens the form seeded with an existing car.
func (e *Editor) OpenEdit(car model.Car) {
	e.mu.Lock()
	e.draft = car
	e.mu.Unlock()
	e.setState(StateFormOpen, "")
}

// Draft returns the car the form was opened with.
func (e *Editor) Draft() model.Car {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Cancel closes the form without submitting.
func (e *Editor) Cancel() {
	e.mu.Lock()
	e.draft = model.Car{}
	e.mu.Unlock()
	e.setState(StateIdle, "")
}

// State returns the current lifecycle position.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Message returns the current user-facing message, if any.
func (e *Editor) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Submit runs the submission pipeline. Validation failures keep the form open
// with a message and never reach the network; pipeline failures move to the
// failed state with a message mapped from the cause.
func (e *Editor) Submit(ctx context.Context, sub Submission) error {
	if !validCar(sub.Car) {
		e.setState(StateFormOpen, MsgInvalidForm)
		return ErrInvalidForm
	}

	car := sub.Car
	if len(sub.Photo) > 0 {
		e.setState(StateUploading, "")
		ref, err := e.uploadPhoto(ctx, car.ID, sub)
		if err != nil {
			e.fail(err)
			return err
		}
		car.Photo = ref

		if _, err := store.BumpImageVersion(ctx, e.db); err != nil {
			e.log.Error("bumping image version", "error", err)
		}
	}

	e.setState(StatePersisting, "")
	var err error
	if car.ID == 0 {
		err = e.client.AddCar(ctx, car)
	} else {
		err = e.client.UpdateCar(ctx, car)
	}
	if err != nil {
		e.fail(err)
		return err
	}

	e.setState(StateSuccess, "")
	e.log.Info("car saved", "id", car.ID, "brand", car.Brand, "model", car.Model)
	return nil
}

// uploadPhoto crops, normalizes, compresses and uploads the photo, returning
// the reference the persisted car should carry. Edits of an existing car use
// the per-car upload endpoint; new cars use the generic one.
func (e *Editor) uploadPhoto(ctx context.Context, carID int64, sub Submission) (string, error) {
	data := sub.Photo
	if sub.Crop != nil {
		cropped, err := imaging.Crop(data, *sub.Crop)
		if err != nil {
			return "", fmt.Errorf("cropping photo: %w", err)
		}
		data = cropped
	}

	// Validate the format and bound the dimensions before the size budget
	// is applied.
	processed, err := imaging.Process(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("processing photo: %w", err)
	}
	data = processed.Data

	compressed, ok, err := imaging.CompressToSize(data, e.maxUploadBytes)
	if err != nil {
		return "", fmt.Errorf("compressing photo: %w", err)
	}
	if !ok {
		return "", &api.Error{Status: 413, Message: MsgFileTooLarge}
	}

	if carID != 0 {
		return e.client.UploadCarPhoto(ctx, carID, sub.PhotoName, compressed)
	}
	return e.client.UploadPhoto(ctx, sub.PhotoName, compressed)
}

// fail records the failure with a message mapped from the cause: the 413
// message for oversized uploads, the server's own message when it sent one,
// else the generic failure text.
func (e *Editor) fail(err error) {
	msg := MsgOperationFailed
	var apiErr *api.Error
	if api.IsPayloadTooLarge(err) {
		msg = MsgFileTooLarge
	} else if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	e.log.Warn("submission failed", "error", err)
	e.setState(StateFailed, msg)
}

func (e *Editor) setState(s State, message string) {
	e.mu.Lock()
	e.state = s
	e.message = message
	e.mu.Unlock()
}

// validCar checks the form fields locally: brand and model must be non-blank
// and the price a non-negative number.
func validCar(car model.Car) bool {
	return strings.TrimSpace(car.Brand) != "" &&
		strings.TrimSpace(car.Model) != "" &&
		!math.IsNaN(car.Price) && car.Price >= 0
}
