package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Car represents a catalog entry as served by the remote API.
// ID is zero for cars that have not been persisted yet.
type Car struct {
	ID    int64   `json:"id,omitempty"`
	Brand string  `json:"brand"`
	Model string  `json:"model"`
	Price float64 `json:"price"`
	Photo string  `json:"photo,omitempty"`
}

// carAlias carries the raw payload. The API is loose about numeric fields
// (price has been observed both as a number and as a string), so they are
// decoded as raw JSON and normalized here.
type carAlias struct {
	ID    int64           `json:"id"`
	Brand string          `json:"brand"`
	Model string          `json:"model"`
	Price json.RawMessage `json:"price"`
	Photo string          `json:"photo"`
}

// UnmarshalJSON decodes a car, tolerating a string-typed price.
// An unparseable price becomes 0 rather than a decode error.
func (c *Car) UnmarshalJSON(data []byte) error {
	var raw carAlias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ID = raw.ID
	c.Brand = raw.Brand
	c.Model = raw.Model
	c.Photo = raw.Photo
	c.Price = parseLooseNumber(raw.Price)
	return nil
}

// parseLooseNumber reads a JSON number or a numeric string, returning 0 for
// anything else.
func parseLooseNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return n
}
