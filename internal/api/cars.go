package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/search"
)

// ListCars fetches the full unfiltered catalog.
func (c *Client) ListCars(ctx context.Context) ([]model.Car, error) {
	var cars []model.Car
	if err := c.doJSON(ctx, "GET", "/car", nil, &cars); err != nil {
		return nil, err
	}
	return cars, nil
}

// GetCar fetches a single catalog entry.
func (c *Client) GetCar(ctx context.Context, id int64) (*model.Car, error) {
	var car model.Car
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/car/id/%d", id), nil, &car); err != nil {
		return nil, err
	}
	return &car, nil
}

// AddCar creates a catalog entry.
func (c *Client) AddCar(ctx context.Context, car model.Car) error {
	return c.doJSON(ctx, "POST", "/car/add", car, nil)
}

// UpdateCar updates an existing catalog entry.
func (c *Client) UpdateCar(ctx context.Context, car model.Car) error {
	if car.ID == 0 {
		return fmt.Errorf("updating a car requires an id")
	}
	return c.doJSON(ctx, "PATCH", fmt.Sprintf("/car/%d", car.ID), car, nil)
}

// DeleteCar removes a catalog entry.
func (c *Client) DeleteCar(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "DELETE", fmt.Sprintf("/car/%d", id), nil, nil)
}

// SearchResult is the tagged union the search endpoint answers with: either
// a list of cars or a plain-text message ("Brak wyników" and friends). The
// message form is user-facing information, not a transport error.
type SearchResult struct {
	Cars    []model.Car
	Message string
}

// SearchCars runs a server-side search. The endpoint responds either with a
// JSON array or with a plain-text message; both are handled, a non-JSON body
// never becomes a decode failure.
func (c *Client) SearchCars(ctx context.Context, criteria search.Criteria) (*SearchResult, error) {
	resp, err := c.do(ctx, "POST", "/car/search", criteria)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var cars []model.Car
	if json.Unmarshal(data, &cars) == nil {
		return &SearchResult{Cars: cars}, nil
	}

	var text string
	if json.Unmarshal(data, &text) == nil {
		return &SearchResult{Message: text}, nil
	}
	return &SearchResult{Message: strings.TrimSpace(string(data))}, nil
}
