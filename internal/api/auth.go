package api

import (
	"context"
	"fmt"

	"github.com/mwierzba/autonajem/internal/model"
)

// LoginResponse carries the bearer token issued by the API.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.doJSON(ctx, "POST", "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, reg model.Registration) error {
	return c.doJSON(ctx, "POST", "/auth/register", reg, nil)
}

// Users lists all accounts (admin-only path on the API side).
func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.doJSON(ctx, "GET", "/auth/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// User fetches one account.
func (c *Client) User(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/auth/user/%d", id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
