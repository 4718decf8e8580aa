package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/db"
	"github.com/mwierzba/autonajem/internal/frontend"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/session"
	"github.com/mwierzba/autonajem/internal/urlsync"
	"github.com/mwierzba/autonajem/internal/workflow"
)

// fakeRemote is the remote catalog API the web server talks to during tests.
type fakeRemote struct {
	mu      sync.Mutex
	cars    []model.Car
	rentals []model.Rental
	status  int
	hits    map[string]int
	added   []api.RentalPayload
}

func (f *fakeRemote) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.hits[r.Method+" "+r.URL.Path]++

		if f.status != 0 {
			http.Error(w, "rejected", f.status)
			return
		}

		switch {
		case r.Method == "GET" && r.URL.Path == "/car":
			json.NewEncoder(w).Encode(f.cars)
		case r.Method == "POST" && r.URL.Path == "/car/search":
			json.NewEncoder(w).Encode(f.cars)
		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/car/id/"):
			json.NewEncoder(w).Encode(f.cars[0])
		case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/rent/car/"):
			json.NewEncoder(w).Encode(f.rentals)
		case r.Method == "POST" && strings.HasPrefix(r.URL.Path, "/rent/car/"):
			var payload api.RentalPayload
			json.NewDecoder(r.Body).Decode(&payload)
			f.added = append(f.added, payload)
			w.WriteHeader(http.StatusCreated)
		case r.Method == "POST" && r.URL.Path == "/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "token"})
		default:
			t.Logf("fake remote: unhandled %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	})
}

type webFixture struct {
	remote *fakeRemote
	router http.Handler
	sess   *session.Manager
}

func (f *webFixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func (f *webFixture) post(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func newWebFixture(t *testing.T, remote *fakeRemote) *webFixture {
	t.Helper()
	if remote.hits == nil {
		remote.hits = make(map[string]int)
	}

	remoteServer := httptest.NewServer(remote.handler(t))
	t.Cleanup(remoteServer.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	database := db.NewTestDB(t)
	client := api.New(remoteServer.URL)

	sess, err := session.NewManager(context.Background(), database, client, logger)
	require.NoError(t, err)

	navigator := &Navigator{}
	urls := urlsync.New(navigator, nil)
	controller := frontend.NewController(context.Background(), client, sess, urls, logger)
	t.Cleanup(controller.Close)

	router, err := NewRouter(&Server{
		DB:         database,
		Client:     client,
		Session:    sess,
		Catalog:    controller,
		Editor:     workflow.NewEditor(client, database, logger, 5<<20),
		URLState:   urls,
		Nav:        navigator,
		RemoteBase: remoteServer.URL,
	})
	require.NoError(t, err)

	return &webFixture{remote: remote, router: router, sess: sess}
}

func sampleCars(n int) []model.Car {
	cars := make([]model.Car, 0, n)
	for i := 1; i <= n; i++ {
		cars = append(cars, model.Car{
			ID:    int64(i),
			Brand: "Toyota",
			Model: "Corolla",
			Price: float64(100 + i),
		})
	}
	return cars
}

func TestCatalogPageRendersCars(t *testing.T) {
	f := newWebFixture(t, &fakeRemote{cars: sampleCars(12)})

	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Toyota Corolla")
	// 12 cars at 9 per page paginate into two pages.
	assert.Contains(t, body, "page=2")
}

func TestCatalogQueryDrivesSearch(t *testing.T) {
	remote := &fakeRemote{cars: sampleCars(3)}
	f := newWebFixture(t, remote)

	rec := f.get(t, "/?search=Toyota")
	require.Equal(t, http.StatusOK, rec.Code)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.hits["POST /car/search"])
	assert.Zero(t, remote.hits["GET /car"])
}

func TestSearchSubmitRedirectsToCanonicalURL(t *testing.T) {
	f := newWebFixture(t, &fakeRemote{cars: sampleCars(3)})

	rec := f.post(t, "/search", url.Values{"search": {"Toyota"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "search=Toyota")
	assert.Contains(t, location, "sort=relevance")
}

func TestUnauthorizedListingShowsLoginBanner(t *testing.T) {
	f := newWebFixture(t, &fakeRemote{status: http.StatusUnauthorized})

	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, frontend.MsgLoginRequired)
	assert.Contains(t, body, "Zaloguj się ponownie")

	// The prompt was consumed by the render; without a new rejection it does
	// not reappear.
	rec = f.get(t, "/")
	assert.Contains(t, rec.Body.String(), frontend.MsgLoginRequired)
}

func TestCarSaveInvalidFormNeverReachesRemote(t *testing.T) {
	remote := &fakeRemote{cars: sampleCars(1)}
	f := newWebFixture(t, remote)

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("brand", "  "))
	require.NoError(t, writer.WriteField("model", "Corolla"))
	require.NoError(t, writer.WriteField("price", "120"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/cars/save", strings.NewReader(buf.String()))
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), workflow.MsgInvalidForm)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Empty(t, remote.hits)
}

func TestRentInvertedRangeRejected(t *testing.T) {
	remote := &fakeRemote{cars: sampleCars(1)}
	f := newWebFixture(t, remote)

	rec := f.post(t, "/cars/1/rent", url.Values{
		"startDate": {"2024-06-10"},
		"startTime": {"10:00"},
		"endDate":   {"2024-06-01"},
		"endTime":   {"10:00"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Data końcowa musi być późniejsza lub równa początkowej",
		location.Query().Get("error"))

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Empty(t, remote.added)
}

func TestRentOverlapBlocked(t *testing.T) {
	remote := &fakeRemote{
		cars: sampleCars(1),
		rentals: []model.Rental{{
			ID:       1,
			CarID:    1,
			StartISO: "2024-06-01T10:00:00.000Z",
			EndISO:   "2024-06-03T10:00:00.000Z",
		}},
	}
	f := newWebFixture(t, remote)

	rec := f.post(t, "/cars/1/rent", url.Values{
		"startDate": {"2024-06-02"},
		"startTime": {"10:00"},
		"endDate":   {"2024-06-04"},
		"endTime":   {"10:00"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, MsgAlreadyRented, location.Query().Get("error"))

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Empty(t, remote.added)
}

func TestRentAdjacentBookingAllowed(t *testing.T) {
	remote := &fakeRemote{
		cars: sampleCars(1),
		rentals: []model.Rental{{
			ID:       1,
			CarID:    1,
			StartISO: "2024-06-01T10:00:00.000Z",
			EndISO:   "2024-06-03T10:00:00.000Z",
		}},
	}
	f := newWebFixture(t, remote)

	// Starts at the exact instant the existing rental ends.
	rec := f.post(t, "/cars/1/rent", url.Values{
		"startDate": {"2024-06-03"},
		"startTime": {"10:00"},
		"endDate":   {"2024-06-05"},
		"endTime":   {"10:00"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Empty(t, location.Query().Get("error"))

	remote.mu.Lock()
	defer remote.mu.Unlock()
	require.Len(t, remote.added, 1)
	assert.Equal(t, "2024-06-03T10:00:00.000Z", remote.added[0].StartDate)
	assert.Equal(t, "2024-06-05T10:00:00.000Z", remote.added[0].EndDate)
}

func TestUsersPageForbiddenWithoutPermission(t *testing.T) {
	f := newWebFixture(t, &fakeRemote{})

	rec := f.get(t, "/users")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
