// Package frontend drives the catalog page: it owns the search form, the car
// collection, the page position and the user-facing message, and keeps them in
// step with the page URL. All filtering beyond the server-side search is done
// client-side on the loaded list.
package frontend

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/catalog"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/search"
	"github.com/mwierzba/autonajem/internal/session"
	"github.com/mwierzba/autonajem/internal/urlsync"
)

const (
	// RowsPerPage is the fixed page size of the catalog grid.
	RowsPerPage = 9
	// DebounceInterval is how long typing has to settle before a search fires.
	DebounceInterval = 350 * time.Millisecond
)

// User-facing messages, matching the catalog UI language.
const (
	MsgNoResults     = "Brak wyników"
	MsgLoginRequired = "Nie można wyświetlić samochodów — wymagane zalogowanie"
	MsgFetchFailed   = "Nie udało się pobrać samochodów"
)

// sortCycle is the order the sort toggle steps through.
var sortCycle = []string{"relevance", "name.asc", "name.desc", "price.asc", "price.desc"}

// NextSort returns the option following current in the sort cycle. Unknown
// options restart the cycle.
func NextSort(current string) string {
	for i, option := range sortCycle {
		if option == current {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return sortCycle[0]
}

// Snapshot is the view state of the catalog page at one point in time.
type Snapshot struct {
	Rows       []catalog.CarView
	Page       int
	TotalPages int
	Sort       string
	Form       search.FormValue
	Message    string
	HasData    bool
}

// Controller is the catalog page state machine.
type Controller struct {
	client *api.Client
	sess   *session.Manager
	sync   *urlsync.Sync
	log    *slog.Logger

	ctx      context.Context
	debounce time.Duration
	perPage  int

	mu         sync.Mutex
	collection *catalog.Collection
	form       search.FormValue
	applied    search.FormValue
	payload    search.Payload
	page       int
	message    string

	timer   *time.Timer
	pending search.FormValue

	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithDebounce overrides the typing debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithRowsPerPage overrides the page size.
func WithRowsPerPage(n int) Option {
	return func(c *Controller) { c.perPage = n }
}

// NewController wires the controller to the API client, the session and the
// URL synchronizer. ctx bounds background work (debounced searches and the
// reload after a login); Close stops it.
func NewController(ctx context.Context, client *api.Client, sess *session.Manager, urls *urlsync.Sync, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		client:     client,
		sess:       sess,
		sync:       urls,
		log:        log,
		ctx:        ctx,
		debounce:   DebounceInterval,
		perPage:    RowsPerPage,
		collection: catalog.New(nil),
		page:       1,
		payload:    search.Normalize(search.FormValue{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	urls.Subscribe(c.HandleRouteParams)
	go c.watchLogin()
	return c
}

// Close stops the debounce timer and the background watcher. Pending debounced
// searches are dropped.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.mu.Unlock()
		close(c.done)
	})
}

// watchLogin reloads the catalog after a login completes, so a list that
// failed with a 401 recovers without manual action.
func (c *Controller) watchLogin() {
	for {
		select {
		case <-c.done:
			return
		case <-c.sess.LoginSucceeded():
			if err := c.Refresh(c.ctx); err != nil {
				c.log.Warn("reload after login failed", "error", err)
			}
		}
	}
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	paged := c.collection.Paginate(c.page, c.perPage)
	return Snapshot{
		Rows:       paged.Rows,
		Page:       paged.Page,
		TotalPages: paged.TotalPages,
		Sort:       c.payload.Sort,
		Form:       c.form,
		Message:    c.message,
		HasData:    c.collection.HasData(),
	}
}

// Search normalizes the form and runs it immediately, cancelling any pending
// debounced search. The page resets to 1 and the URL reflects the new state.
func (c *Controller) Search(ctx context.Context, form search.FormValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	return c.searchLocked(ctx, form, true)
}

// ClearSearch drops all filters and reloads the plain catalog listing.
func (c *Controller) ClearSearch(ctx context.Context) error {
	return c.Search(ctx, search.FormValue{})
}

// Refresh re-runs the last applied search without touching the URL.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchLocked(ctx, c.applied, false)
}

// SetFormValue records a keystroke-level form change and arms the debounce
// timer. When typing settles the search runs, unless the form is identical to
// the one already applied.
func (c *Controller) SetFormValue(form search.FormValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form = form
	c.pending = form
	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.debounce, c.fireDebounced)
}

func (c *Controller) fireDebounced() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	if search.Equals(c.pending, c.applied) {
		return
	}
	if err := c.searchLocked(c.ctx, c.pending, true); err != nil {
		c.log.Warn("debounced search failed", "error", err)
	}
}

// CycleSort advances the sort toggle and re-orders the loaded list in place.
// Sorting is client-side; no refetch happens.
func (c *Controller) CycleSort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setSortLocked(NextSort(c.payload.Sort))
}

// SetSort applies an explicit sort option.
func (c *Controller) SetSort(option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setSortLocked(option)
}

func (c *Controller) setSortLocked(option string) error {
	c.form.Sort = option
	c.applied.Sort = option
	c.payload.Sort = option
	c.collection.Sort(option, c.payload.QueryText)
	return c.sync.Update(map[string]*string{"sort": &option})
}

// GoToPage moves to the requested page. Out-of-range pages are clamped, and
// the clamped number is what lands in the URL.
func (c *Controller) GoToPage(page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	paged := c.collection.Paginate(page, c.perPage)
	c.page = paged.Page
	return c.sync.Update(map[string]*string{"page": pageParam(paged.Page)})
}

// HandleRouteParams rebuilds the form from URL parameters and runs the search.
// It is the entry point for external navigation (back/forward, a pasted URL)
// and must not push the URL again.
func (c *Controller) HandleRouteParams(params url.Values) {
	form := FormFromParams(params)

	page := 1
	if n, err := strconv.Atoi(params.Get("page")); err == nil && n > 0 {
		page = n
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	if err := c.searchLocked(c.ctx, form, false); err != nil {
		c.log.Warn("route-driven search failed", "error", err)
		return
	}
	c.page = c.collection.Paginate(page, c.perPage).Page
}

// FormFromParams restores a form value from URL query parameters.
func FormFromParams(params url.Values) search.FormValue {
	startDate, startTime := search.SplitDateTime(params.Get("startDate"))
	endDate, endTime := search.SplitDateTime(params.Get("endDate"))
	return search.FormValue{
		Search:    params.Get("search"),
		MinPrice:  params.Get("minPrice"),
		MaxPrice:  params.Get("maxPrice"),
		StartDate: startDate,
		StartTime: startTime,
		EndDate:   endDate,
		EndTime:   endTime,
		Sort:      params.Get("sort"),
	}
}

// searchLocked is the single execution path for every search, debounced or
// not. pushURL is false when the state change originated from the URL itself.
func (c *Controller) searchLocked(ctx context.Context, form search.FormValue, pushURL bool) error {
	payload := search.Normalize(form)

	c.form = form
	c.applied = form
	c.payload = payload
	c.page = 1

	if err := c.fetchLocked(ctx, payload); err != nil {
		if pushURL {
			c.pushURLLocked(payload)
		}
		return err
	}

	c.collection.Sort(payload.Sort, payload.QueryText)
	c.collection.FilterByPrice(payload.MinPrice, payload.MaxPrice)

	if pushURL {
		return c.pushURLLocked(payload)
	}
	return nil
}

// fetchLocked loads cars from the API: the search endpoint when criteria are
// active, the plain listing otherwise. It owns the message state.
func (c *Controller) fetchLocked(ctx context.Context, payload search.Payload) error {
	if payload.HasCriteria {
		result, err := c.client.SearchCars(ctx, payload.Criteria)
		if err != nil {
			c.failLocked(err)
			return err
		}
		if result.Message != "" {
			// The search endpoint answers with plain text instead of a
			// list; the text is the message shown to the user.
			c.collection.Clear()
			c.message = result.Message
			return nil
		}
		c.adoptLocked(result.Cars)
		return nil
	}

	cars, err := c.client.ListCars(ctx)
	if err != nil {
		c.failLocked(err)
		return err
	}
	c.adoptLocked(cars)
	return nil
}

// adoptLocked replaces the loaded list. An empty list is a valid answer and
// gets the no-results message.
func (c *Controller) adoptLocked(cars []model.Car) {
	c.collection.SetCars(cars)
	if len(cars) == 0 {
		c.message = MsgNoResults
	} else {
		c.message = ""
	}
}

// failLocked maps a fetch error onto the view. A 401 clears the list, shows
// the login-required message and raises the login prompt, at most one per
// burst of rejected requests. Other failures show the server's own message
// when it sent one.
func (c *Controller) failLocked(err error) {
	c.collection.Clear()
	if api.IsUnauthorized(err) {
		c.message = MsgLoginRequired
		c.sess.RequestLoginPrompt()
		return
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		c.message = apiErr.Message
	} else {
		c.message = MsgFetchFailed
	}
	c.log.Warn("loading cars failed", "error", err)
}

// pushURLLocked reflects the search state into the URL. Page 1 is the default
// and keeps the URL clean of a page parameter.
func (c *Controller) pushURLLocked(payload search.Payload) error {
	params := make(map[string]*string, len(payload.QueryParams)+1)
	for key, val := range payload.QueryParams {
		params[key] = val
	}
	params["page"] = pageParam(c.page)
	return c.sync.Update(params)
}

func pageParam(page int) *string {
	if page <= 1 {
		return nil
	}
	s := strconv.Itoa(page)
	return &s
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
