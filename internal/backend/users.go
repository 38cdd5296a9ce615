package backend

import (
	"context"
	"fmt"
	"net/http"
)

// User is a staff record managed by administrators.
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Roles    []string `json:"roles"`
	Active   bool     `json:"active"`
}

// ListUsers returns all staff records.
func (c *Client) ListUsers(ctx context.Context, bearer string) ([]User, error) {
	var out []User
	if err := c.do(ctx, http.MethodGet, "/api/users", bearer, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes a staff record.
func (c *Client) DeleteUser(ctx context.Context, bearer string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/users/%d", id), bearer, nil, nil)
}
