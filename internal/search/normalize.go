// Package search turns the free-form catalog search form into the criteria
// object sent to the remote API and the query parameters reflected into the
// page URL.
package search

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrDateOrder is reported when the end of the requested range precedes the start.
var ErrDateOrder = errors.New("Data końcowa musi być późniejsza lub równa początkowej")

// FormValue is the raw state of the search form. All fields are free text as
// typed; numbers and dates are only interpreted during normalization.
type FormValue struct {
	Search    string
	MinPrice  string
	MaxPrice  string
	StartDate string
	StartTime string
	EndDate   string
	EndTime   string
	Sort      string
}

// Criteria is the server-bound filter object. Empty means "no active search"
// and callers must fall back to the plain catalog listing.
type Criteria struct {
	Brand     string   `json:"brand,omitempty"`
	Model     string   `json:"model,omitempty"`
	StartDate string   `json:"startDate,omitempty"`
	EndDate   string   `json:"endDate,omitempty"`
	MinPrice  *float64 `json:"minPrice,omitempty"`
	MaxPrice  *float64 `json:"maxPrice,omitempty"`
}

// Empty reports whether no filter survived normalization.
func (c Criteria) Empty() bool {
	return c.Brand == "" && c.Model == "" && c.StartDate == "" && c.EndDate == "" &&
		c.MinPrice == nil && c.MaxPrice == nil
}

// Payload is the result of normalizing a form value. QueryParams entries with
// a nil value mean "remove this parameter from the URL".
type Payload struct {
	Criteria    Criteria
	QueryParams map[string]*string
	HasCriteria bool
	QueryText   string
	MinPrice    *float64
	MaxPrice    *float64
	Sort        string
}

// DefaultSort is used when the form carries no sort option.
const DefaultSort = "relevance"

// Normalize derives the server criteria, the URL parameters and the view
// flags from a form value. Free text shorter than two characters is treated
// as absent. A date range only counts when both bounds resolve and the start
// does not come after the end; otherwise both bounds are cleared from the URL.
func Normalize(value FormValue) Payload {
	sort := value.Sort
	if sort == "" {
		sort = DefaultSort
	}

	params := map[string]*string{"sort": ptr(sort)}
	criteria := Criteria{}
	queryText := ""

	rawSearch := strings.TrimSpace(value.Search)
	if len(rawSearch) >= 2 {
		queryText = strings.ToLower(rawSearch)
		params["search"] = ptr(rawSearch)

		tokens := strings.Fields(rawSearch)
		brand := tokens[0]
		if len(brand) >= 2 {
			criteria.Brand = brand
		}
		model := strings.TrimSpace(strings.Join(tokens[1:], " "))
		if len(model) >= 2 {
			criteria.Model = model
		}
		// Never drop a valid search silently: if neither token qualified,
		// the whole text becomes the brand filter.
		if criteria.Brand == "" && criteria.Model == "" {
			criteria.Brand = rawSearch
		}
	} else {
		params["search"] = nil
	}

	startISO := CombineDateTime(value.StartDate, value.StartTime, BoundStart)
	endISO := CombineDateTime(value.EndDate, value.EndTime, BoundEnd)
	if startISO != "" && endISO != "" && instantBefore(startISO, endISO) {
		criteria.StartDate = startISO
		criteria.EndDate = endISO
		params["startDate"] = ptr(startISO)
		params["endDate"] = ptr(endISO)
	} else {
		params["startDate"] = nil
		params["endDate"] = nil
	}

	min := toNumber(value.MinPrice)
	max := toNumber(value.MaxPrice)
	params["minPrice"] = numberParam(min)
	params["maxPrice"] = numberParam(max)
	criteria.MinPrice = min
	criteria.MaxPrice = max

	return Payload{
		Criteria:    criteria,
		QueryParams: params,
		HasCriteria: !criteria.Empty(),
		QueryText:   queryText,
		MinPrice:    min,
		MaxPrice:    max,
		Sort:        sort,
	}
}

// Bound selects the default time for a missing time component.
type Bound int

const (
	BoundStart Bound = iota
	BoundEnd
)

// CombineDateTime joins a date and a time into a UTC instant string.
// A missing time defaults to 00:00 for a start bound and 23:59 for an end
// bound. An absent date yields no bound regardless of the time.
func CombineDateTime(date, timeOfDay string, kind Bound) string {
	if date == "" {
		return ""
	}
	t := strings.TrimSpace(timeOfDay)
	if t == "" {
		if kind == BoundEnd {
			t = "23:59"
		} else {
			t = "00:00"
		}
	}
	return date + "T" + t + ":00.000Z"
}

// SplitDateTime is the inverse of CombineDateTime, used when restoring form
// state from URL parameters.
func SplitDateTime(value string) (date, timeOfDay string) {
	if value == "" {
		return "", ""
	}
	normalized := strings.Replace(value, " ", "T", 1)
	if len(normalized) < 10 {
		return normalized, ""
	}
	date = normalized[:10]
	if len(normalized) >= 16 {
		timeOfDay = normalized[11:16]
	}
	return date, timeOfDay
}

// ValidateDateOrder reports ErrDateOrder when both bounds resolve and the
// start comes after the end. A half-specified range is not an error.
func ValidateDateOrder(value FormValue) error {
	startISO := CombineDateTime(value.StartDate, value.StartTime, BoundStart)
	endISO := CombineDateTime(value.EndDate, value.EndTime, BoundEnd)
	if startISO == "" || endISO == "" {
		return nil
	}
	if !instantBefore(startISO, endISO) {
		return ErrDateOrder
	}
	return nil
}

// Equals reports whether two form values match field for field. Used as the
// distinctness check that suppresses redundant debounced searches.
func Equals(a, b FormValue) bool {
	return a == b
}

func toNumber(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

func numberParam(n *float64) *string {
	if n == nil {
		return nil
	}
	return ptr(strconv.FormatFloat(*n, 'f', -1, 64))
}

// instantBefore compares two combined instants, true when start <= end.
func instantBefore(startISO, endISO string) bool {
	const layout = "2006-01-02T15:04:05.000Z"
	start, err := time.Parse(layout, startISO)
	if err != nil {
		return false
	}
	end, err := time.Parse(layout, endISO)
	if err != nil {
		return false
	}
	return !start.After(end)
}

func ptr(s string) *string {
	return &s
}
