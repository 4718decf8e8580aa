package model

// User represents an account on the remote API.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsPermitted bool   `json:"isPermitted"`
}

// Credentials is the login request body.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
