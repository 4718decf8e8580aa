package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// uploadResponse covers both upload endpoints: the generic one answers with
// a filename, the per-car one with a photoId.
type uploadResponse struct {
	Filename string `json:"filename"`
	PhotoID  string `json:"photoId"`
}

// UploadPhoto uploads a photo not yet attached to a car (the add flow) and
// returns the stored reference to put on the car's photo field.
func (c *Client) UploadPhoto(ctx context.Context, filename string, data []byte) (string, error) {
	return c.upload(ctx, "/upload", filename, data)
}

// UploadCarPhoto uploads a photo for an existing car (the edit flow) and
// returns the stored reference.
func (c *Client) UploadCarPhoto(ctx context.Context, carID int64, filename string, data []byte) (string, error) {
	return c.upload(ctx, fmt.Sprintf("/upload/car/%d", carID), filename, data)
}

func (c *Client) upload(ctx context.Context, path, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("writing multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, &body)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.run(req)
	if err != nil {
		return "", fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp)
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding upload response: %w", err)
	}
	if decoded.PhotoID != "" {
		return decoded.PhotoID, nil
	}
	return decoded.Filename, nil
}
