package model

import "encoding/json"

// Rental represents a booking of a car for a date range.
// StartISO/EndISO are full instants; the date/time pairs are the form-level
// representation the API also returns.
type Rental struct {
	ID        int64  `json:"id"`
	CarID     int64  `json:"carId"`
	UserID    int64  `json:"userId"`
	StartDate string `json:"startDate"`
	StartTime string `json:"startTime,omitempty"`
	EndDate   string `json:"endDate"`
	EndTime   string `json:"endTime,omitempty"`
	StartISO  string `json:"startIso,omitempty"`
	EndISO    string `json:"endIso,omitempty"`
}

// rentalAlias lists every field name the API has historically used for a
// rental. Older records mix snake_case and even misspelled keys
// (start_data). The aliases are normalized at this boundary and nothing
// downstream ever sees them.
type rentalAlias struct {
	ID        int64  `json:"id"`
	RentID    int64  `json:"rent_id"`
	RentalID  int64  `json:"rental_id"`
	CarID     int64  `json:"carId"`
	CarIDAlt  int64  `json:"car_id"`
	UserID    int64  `json:"userId"`
	UserIDAlt int64  `json:"user_id"`
	StartDate string `json:"startDate"`
	StartAlt  string `json:"start_date"`
	StartTypo string `json:"start_data"`
	StartTime string `json:"startTime"`
	EndDate   string `json:"endDate"`
	EndAlt    string `json:"end_date"`
	EndTypo   string `json:"end_data"`
	EndTime   string `json:"endTime"`
	StartISO  string `json:"startIso"`
	EndISO    string `json:"endIso"`
}

// UnmarshalJSON normalizes legacy field aliases into the canonical shape.
func (r *Rental) UnmarshalJSON(data []byte) error {
	var raw rentalAlias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = firstNonZero(raw.ID, raw.RentID, raw.RentalID)
	r.CarID = firstNonZero(raw.CarID, raw.CarIDAlt)
	r.UserID = firstNonZero(raw.UserID, raw.UserIDAlt)
	r.StartDate = firstNonEmpty(raw.StartDate, raw.StartAlt, raw.StartTypo)
	r.StartTime = raw.StartTime
	r.EndDate = firstNonEmpty(raw.EndDate, raw.EndAlt, raw.EndTypo)
	r.EndTime = raw.EndTime
	r.StartISO = raw.StartISO
	r.EndISO = raw.EndISO
	return nil
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
