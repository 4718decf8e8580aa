package frontend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/db"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/search"
	"github.com/mwierzba/autonajem/internal/session"
	"github.com/mwierzba/autonajem/internal/urlsync"
)

type recordingNavigator struct {
	mu   sync.Mutex
	urls []url.Values
}

func (n *recordingNavigator) Navigate(params url.Values) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, params)
	return nil
}

func (n *recordingNavigator) last() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		return nil
	}
	return n.urls[len(n.urls)-1]
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.urls)
}

func loginToken(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{"id": 5, "username": "ala", "email": "ala@example.com", "isPermitted": true}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("remote-secret"))
	require.NoError(t, err)
	return token
}

func testCars(n int) []model.Car {
	cars := make([]model.Car, 0, n)
	brands := []string{"Toyota", "Skoda", "Fiat", "Opel"}
	for i := 1; i <= n; i++ {
		cars = append(cars, model.Car{
			ID:    int64(i),
			Brand: brands[i%len(brands)],
			Model: "Model" + string(rune('A'+i%26)),
			Price: float64(50 + i*10),
		})
	}
	return cars
}

type fixture struct {
	controller *Controller
	navigator  *recordingNavigator
	sess       *session.Manager
	listHits   *atomic.Int32
	searchHits *atomic.Int32
}

// newFixture builds a controller over a fake remote API. searchResponse
// controls what POST /car/search answers: a car list, or a plain text body
// when textBody is set.
func newFixture(t *testing.T, cars []model.Car, searchResult []model.Car, textBody string, status int) *fixture {
	t.Helper()

	var listHits, searchHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			http.Error(w, "rejected", status)
			return
		}
		switch r.URL.Path {
		case "/car":
			listHits.Add(1)
			json.NewEncoder(w).Encode(cars)
		case "/car/search":
			searchHits.Add(1)
			if textBody != "" {
				w.Write([]byte(textBody))
				return
			}
			json.NewEncoder(w).Encode(searchResult)
		case "/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"access_token": loginToken(t)})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	client := api.New(server.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sess, err := session.NewManager(context.Background(), db.NewTestDB(t), client, logger)
	require.NoError(t, err)

	navigator := &recordingNavigator{}
	controller := NewController(context.Background(), client, sess, urlsync.New(navigator, nil), logger,
		WithDebounce(10*time.Millisecond))
	t.Cleanup(controller.Close)

	return &fixture{
		controller: controller,
		navigator:  navigator,
		sess:       sess,
		listHits:   &listHits,
		searchHits: &searchHits,
	}
}

func TestEmptySearchLoadsFullListing(t *testing.T) {
	f := newFixture(t, testCars(20), nil, "", 0)

	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{}))

	snap := f.controller.Snapshot()
	assert.Len(t, snap.Rows, RowsPerPage)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 3, snap.TotalPages)
	assert.Equal(t, "relevance", snap.Sort)
	assert.Empty(t, snap.Message)
	assert.Equal(t, int32(1), f.listHits.Load())
	assert.Zero(t, f.searchHits.Load())
}

func TestCriteriaSearchHitsSearchEndpoint(t *testing.T) {
	f := newFixture(t, testCars(20), testCars(3), "", 0)

	form := search.FormValue{Search: "Toyota"}
	require.NoError(t, f.controller.Search(context.Background(), form))

	snap := f.controller.Snapshot()
	assert.Len(t, snap.Rows, 3)
	assert.Equal(t, int32(1), f.searchHits.Load())
	assert.Zero(t, f.listHits.Load())

	last := f.navigator.last()
	require.NotNil(t, last)
	assert.Equal(t, "Toyota", last.Get("search"))
	assert.Equal(t, "relevance", last.Get("sort"))
	assert.Empty(t, last.Get("page"))
}

func TestSearchTextBodyBecomesMessage(t *testing.T) {
	f := newFixture(t, testCars(20), nil, "Brak wyników dla podanych kryteriów", 0)

	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{Search: "Nieistniejąca"}))

	snap := f.controller.Snapshot()
	assert.Empty(t, snap.Rows)
	assert.False(t, snap.HasData)
	assert.Equal(t, "Brak wyników dla podanych kryteriów", snap.Message)
}

func TestEmptySearchResultShowsNoResults(t *testing.T) {
	f := newFixture(t, testCars(20), []model.Car{}, "", 0)

	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{Search: "Nieistniejąca"}))

	snap := f.controller.Snapshot()
	assert.Empty(t, snap.Rows)
	assert.Equal(t, MsgNoResults, snap.Message)
}

func TestUnauthorizedRaisesSinglePrompt(t *testing.T) {
	f := newFixture(t, nil, nil, "", http.StatusUnauthorized)

	ctx := context.Background()
	assert.Error(t, f.controller.Search(ctx, search.FormValue{}))
	assert.Error(t, f.controller.Search(ctx, search.FormValue{}))

	snap := f.controller.Snapshot()
	assert.Equal(t, MsgLoginRequired, snap.Message)
	assert.False(t, snap.HasData)

	prompts := 0
	for {
		select {
		case <-f.sess.LoginRequired():
			prompts++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, prompts)
}

func TestServerErrorShowsServerMessage(t *testing.T) {
	f := newFixture(t, nil, nil, "", http.StatusInternalServerError)

	assert.Error(t, f.controller.Search(context.Background(), search.FormValue{}))
	assert.Equal(t, "rejected", f.controller.Snapshot().Message)
}

func TestServerErrorFallbackMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := api.New(server.URL)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess, err := session.NewManager(context.Background(), db.NewTestDB(t), client, logger)
	require.NoError(t, err)

	controller := NewController(context.Background(), client, sess, urlsync.New(&recordingNavigator{}, nil), logger)
	t.Cleanup(controller.Close)

	assert.Error(t, controller.Search(context.Background(), search.FormValue{}))
	assert.Equal(t, MsgFetchFailed, controller.Snapshot().Message)
}

func TestDebounceCoalescesTyping(t *testing.T) {
	f := newFixture(t, testCars(20), testCars(2), "", 0)

	// Three keystrokes inside the debounce window fire one search.
	f.controller.SetFormValue(search.FormValue{Search: "To"})
	f.controller.SetFormValue(search.FormValue{Search: "Toy"})
	f.controller.SetFormValue(search.FormValue{Search: "Toyota"})

	require.Eventually(t, func() bool {
		return f.searchHits.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), f.searchHits.Load())
}

func TestDebounceSkipsIdenticalForm(t *testing.T) {
	f := newFixture(t, testCars(20), testCars(2), "", 0)

	form := search.FormValue{Search: "Toyota"}
	require.NoError(t, f.controller.Search(context.Background(), form))
	require.Equal(t, int32(1), f.searchHits.Load())

	// Re-entering the same form must not refetch.
	f.controller.SetFormValue(form)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), f.searchHits.Load())
}

func TestCycleSortStepsThroughOptions(t *testing.T) {
	f := newFixture(t, testCars(20), nil, "", 0)
	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{}))

	expected := []string{"name.asc", "name.desc", "price.asc", "price.desc", "relevance"}
	for _, want := range expected {
		require.NoError(t, f.controller.CycleSort())
		assert.Equal(t, want, f.controller.Snapshot().Sort)
		assert.Equal(t, want, f.navigator.last().Get("sort"))
	}
}

func TestSortDoesNotRefetch(t *testing.T) {
	f := newFixture(t, testCars(20), nil, "", 0)
	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{}))

	require.NoError(t, f.controller.SetSort("price.asc"))
	assert.Equal(t, int32(1), f.listHits.Load())

	snap := f.controller.Snapshot()
	for i := 1; i < len(snap.Rows); i++ {
		assert.LessOrEqual(t, snap.Rows[i-1].Price, snap.Rows[i].Price)
	}
}

func TestGoToPageClampsAndUpdatesURL(t *testing.T) {
	f := newFixture(t, testCars(20), nil, "", 0)
	require.NoError(t, f.controller.Search(context.Background(), search.FormValue{}))

	require.NoError(t, f.controller.GoToPage(2))
	assert.Equal(t, 2, f.controller.Snapshot().Page)
	assert.Equal(t, "2", f.navigator.last().Get("page"))

	// Out-of-range pages clamp to the last page.
	require.NoError(t, f.controller.GoToPage(10000))
	assert.Equal(t, 3, f.controller.Snapshot().Page)
	assert.Equal(t, "3", f.navigator.last().Get("page"))

	// Page 1 keeps the URL clean.
	require.NoError(t, f.controller.GoToPage(0))
	assert.Equal(t, 1, f.controller.Snapshot().Page)
	assert.Empty(t, f.navigator.last().Get("page"))
}

func TestRouteParamsRestoreStateWithoutPushingURL(t *testing.T) {
	f := newFixture(t, testCars(20), testCars(5), "", 0)

	before := f.navigator.count()
	f.controller.HandleRouteParams(url.Values{
		"search": {"Toyota"},
		"sort":   {"price.desc"},
		"page":   {"1"},
	})

	snap := f.controller.Snapshot()
	assert.Equal(t, search.FormValue{Search: "Toyota", Sort: "price.desc"}, snap.Form)
	assert.Equal(t, "price.desc", snap.Sort)
	assert.Len(t, snap.Rows, 5)
	assert.Equal(t, before, f.navigator.count())
}

func TestRouteParamsRestoreDateRange(t *testing.T) {
	f := newFixture(t, testCars(20), testCars(1), "", 0)

	f.controller.HandleRouteParams(url.Values{
		"startDate": {"2024-06-01T10:00:00.000Z"},
		"endDate":   {"2024-06-03T12:30:00.000Z"},
	})

	form := f.controller.Snapshot().Form
	assert.Equal(t, "2024-06-01", form.StartDate)
	assert.Equal(t, "10:00", form.StartTime)
	assert.Equal(t, "2024-06-03", form.EndDate)
	assert.Equal(t, "12:30", form.EndTime)
}

func TestLoginTriggersReload(t *testing.T) {
	f := newFixture(t, testCars(5), nil, "", 0)

	require.NoError(t, f.sess.Login(context.Background(), model.Credentials{Login: "ala", Password: "tajne"}))

	require.Eventually(t, func() bool {
		return f.listHits.Load() >= 1 && f.controller.Snapshot().HasData
	}, time.Second, 5*time.Millisecond)
}
