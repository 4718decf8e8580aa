package api

import (
	"context"
	"fmt"

	"github.com/mwierzba/autonajem/internal/model"
)

// RentalPayload is the booking interval sent when creating or updating a
// rental.
type RentalPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// CarRentals lists the existing rentals of a car.
func (c *Client) CarRentals(ctx context.Context, carID int64) ([]model.Rental, error) {
	var rentals []model.Rental
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/rent/car/%d", carID), nil, &rentals); err != nil {
		return nil, err
	}
	return rentals, nil
}

// AddRental books a car for the given interval. The API is the authority on
// the overlap invariant; callers should still pre-check locally.
func (c *Client) AddRental(ctx context.Context, carID int64, payload RentalPayload) error {
	return c.doJSON(ctx, "POST", fmt.Sprintf("/rent/car/%d", carID), payload, nil)
}

// UpdateRental changes an existing rental's interval.
func (c *Client) UpdateRental(ctx context.Context, rentalID int64, payload RentalPayload) error {
	return c.doJSON(ctx, "PATCH", fmt.Sprintf("/rent/%d", rentalID), payload, nil)
}

// DeleteRental cancels a rental.
func (c *Client) DeleteRental(ctx context.Context, rentalID int64) error {
	return c.doJSON(ctx, "DELETE", fmt.Sprintf("/rent/%d", rentalID), nil, nil)
}
