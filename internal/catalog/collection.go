// Package catalog holds the client-side collection of cars and applies sort,
// price filtering and pagination to it. The collection never mutates the
// underlying records; it only decorates view copies with recomputable fields.
package catalog

import (
	"sort"
	"strings"

	"github.com/mwierzba/autonajem/internal/model"
)

// CarView is a catalog entry decorated with derived, UI-only fields.
// The derived fields are always recomputable from the base car and are never
// sent back to the API.
type CarView struct {
	model.Car
	IsImageLoading bool

	searchName  string
	priceNumber float64
}

// SearchName returns the lowercased "brand model" string used for matching
// and alphabetical ordering.
func (v CarView) SearchName() string { return v.searchName }

// PriceNumber returns the numeric price, 0 when the source value did not parse.
func (v CarView) PriceNumber() float64 { return v.priceNumber }

// ImageLoadCache remembers, per car ID, whether an image finished loading
// (successfully or not). It survives list reloads so a previously settled
// image does not re-trigger a loading spinner.
type ImageLoadCache map[int64]bool

// Collection is the in-memory list of catalog entries plus an optional
// price-filtered subset.
type Collection struct {
	cars     []CarView
	filtered []CarView
	images   ImageLoadCache
}

// New creates a collection sharing the given image-load cache. A nil cache
// gets a fresh one.
func New(images ImageLoadCache) *Collection {
	if images == nil {
		images = make(ImageLoadCache)
	}
	return &Collection{images: images}
}

// SetCars replaces the full list, decorating each entry, and clears any stale
// filtered subset.
func (c *Collection) SetCars(cars []model.Car) {
	c.cars = make([]CarView, 0, len(cars))
	for _, car := range cars {
		c.cars = append(c.cars, c.decorate(car))
	}
	c.filtered = nil
}

// Clear drops both the full list and the filtered subset.
func (c *Collection) Clear() {
	c.cars = nil
	c.filtered = nil
}

// All returns the full decorated list in its current order.
func (c *Collection) All() []CarView { return c.cars }

// HasData reports whether any cars are loaded.
func (c *Collection) HasData() bool { return len(c.cars) > 0 }

// Sort orders the full list in place according to the option:
// relevance, name.asc, name.desc, price.asc or price.desc. For relevance with
// a non-empty query, entries whose search name contains the query sort first,
// alphabetical within each group. The sort is stable, so identical inputs
// always yield an identical ordering.
func (c *Collection) Sort(option, queryText string) {
	if len(c.cars) == 0 {
		return
	}

	lower := strings.ToLower(strings.TrimSpace(queryText))
	if option == "relevance" || option == "" {
		sort.SliceStable(c.cars, func(i, j int) bool {
			a, b := c.cars[i], c.cars[j]
			aScore := relevanceScore(a.searchName, lower)
			bScore := relevanceScore(b.searchName, lower)
			if aScore != bScore {
				return aScore < bScore
			}
			return a.searchName < b.searchName
		})
		return
	}

	field, dir, _ := strings.Cut(option, ".")
	desc := dir == "desc"
	sort.SliceStable(c.cars, func(i, j int) bool {
		a, b := c.cars[i], c.cars[j]
		var less bool
		if field == "price" {
			less = a.priceNumber < b.priceNumber
		} else {
			less = a.searchName < b.searchName
		}
		if desc {
			return !less && !equalKey(a, b, field)
		}
		return less
	})
}

func equalKey(a, b CarView, field string) bool {
	if field == "price" {
		return a.priceNumber == b.priceNumber
	}
	return a.searchName == b.searchName
}

func relevanceScore(searchName, query string) int {
	if query != "" && strings.Contains(searchName, query) {
		return 0
	}
	return 1
}

// FilterByPrice keeps entries whose price lies within the inclusive bounds.
// Both bounds nil clears the subset so callers fall back to the full list.
func (c *Collection) FilterByPrice(min, max *float64) {
	if len(c.cars) == 0 || (min == nil && max == nil) {
		c.filtered = nil
		return
	}

	filtered := make([]CarView, 0, len(c.cars))
	for _, car := range c.cars {
		if min != nil && car.priceNumber < *min {
			continue
		}
		if max != nil && car.priceNumber > *max {
			continue
		}
		filtered = append(filtered, car)
	}
	c.filtered = filtered
}

// Page is a pagination result. Page is the clamped page number actually used.
type Page struct {
	Rows       []CarView
	Page       int
	TotalPages int
}

// Paginate slices the filtered subset when present, else the full list.
// The requested page is clamped into [1, TotalPages]; clamping the same
// out-of-range page twice gives the same result.
func (c *Collection) Paginate(page, perPage int) Page {
	source := c.source()
	totalPages := totalPages(len(source), perPage)

	safePage := page
	if safePage < 1 {
		safePage = 1
	}
	if safePage > totalPages {
		safePage = totalPages
	}

	start := (safePage - 1) * perPage
	end := start + perPage
	if start > len(source) {
		start = len(source)
	}
	if end > len(source) {
		end = len(source)
	}

	return Page{Rows: source[start:end], Page: safePage, TotalPages: totalPages}
}

// TotalPages returns the page count for the current source list.
func (c *Collection) TotalPages(perPage int) int {
	return totalPages(len(c.source()), perPage)
}

func (c *Collection) source() []CarView {
	if len(c.filtered) > 0 {
		return c.filtered
	}
	return c.cars
}

func totalPages(count, perPage int) int {
	if perPage < 1 {
		perPage = 1
	}
	pages := (count + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}

// MarkImageLoaded records that a car's image has settled, so later reloads do
// not show a spinner for it again.
func (c *Collection) MarkImageLoaded(id int64) {
	if id != 0 {
		c.images[id] = false
	}
	for i := range c.cars {
		if c.cars[i].ID == id {
			c.cars[i].IsImageLoading = false
		}
	}
}

func (c *Collection) decorate(car model.Car) CarView {
	name := strings.ToLower(strings.TrimSpace(car.Brand + " " + car.Model))
	return CarView{
		Car:            car,
		IsImageLoading: c.shouldShowImageLoader(car),
		searchName:     name,
		priceNumber:    car.Price,
	}
}

func (c *Collection) shouldShowImageLoader(car model.Car) bool {
	if car.Photo == "" {
		return false
	}
	if car.ID == 0 {
		return true
	}
	loading, seen := c.images[car.ID]
	return !seen || loading
}
