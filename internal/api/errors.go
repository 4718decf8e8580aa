package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the remote API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsPayloadTooLarge reports whether err is a 413 from the API, which gets a
// dedicated user-facing message in the upload flow.
func IsPayloadTooLarge(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusRequestEntityTooLarge
}

// decodeError reads an error response body. The API answers sometimes with
// {"message": ...} or {"error": ...} and sometimes with plain text; all forms
// end up in Error.Message.
func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &structured) == nil {
		if structured.Message != "" {
			apiErr.Message = structured.Message
			return apiErr
		}
		if structured.Error != "" {
			apiErr.Message = structured.Error
			return apiErr
		}
	}

	// A bare JSON string or plain text body is the message itself.
	var text string
	if json.Unmarshal(data, &text) == nil {
		apiErr.Message = text
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}
