package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Job is a work order.
type Job struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CategoryID  int64      `json:"categoryId"`
	Category    string     `json:"categoryName,omitempty"`
	StatusID    int64      `json:"statusId"`
	Status      string     `json:"statusName,omitempty"`
	AssigneeID  int64      `json:"assigneeId"`
	Assignee    string     `json:"assigneeName,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Comments    []Comment  `json:"comments,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
}

// Comment is a thread entry on a job.
type Comment struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobInput is the editable part of a job.
type JobInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CategoryID  int64      `json:"categoryId"`
	StatusID    int64      `json:"statusId"`
	AssigneeID  int64      `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Option is an id/name pair used by select inputs.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Page   int
	Search string
}

// ListJobs returns a page of jobs.
func (c *Client) ListJobs(ctx context.Context, bearer string, f JobFilter) ([]Job, error) {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Job
	if err := c.do(ctx, http.MethodGet, path, bearer, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OverdueJobs returns jobs past their due date.
func (c *Client) OverdueJobs(ctx context.Context, bearer string) ([]Job, error) {
	var out []Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/over-due-date", bearer, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJob fetches one job with its comments.
func (c *Client) GetJob(ctx context.Context, bearer string, id int64) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateJob saves a job.
func (c *Client) UpdateJob(ctx context.Context, bearer string, id int64, in JobInput) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/jobs/%d", id), bearer, in, nil)
}

// DeleteJob removes a job.
func (c *Client) DeleteJob(ctx context.Context, bearer string, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/jobs/%d", id), bearer, nil, nil)
}

// AddComment appends a comment to a job.
func (c *Client) AddComment(ctx context.Context, bearer string, jobID int64, content string) error {
	in := struct {
		Content string `json:"content"`
	}{Content: content}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/jobs/%d/comments", jobID), bearer, in, nil)
}

// ListCategories returns job categories.
func (c *Client) ListCategories(ctx context.Context, bearer string) ([]Option, error) {
	return c.options(ctx, bearer, "/api/categories")
}

// ListStatuses returns job statuses.
func (c *Client) ListStatuses(ctx context.Context, bearer string) ([]Option, error) {
	return c.options(ctx, bearer, "/api/statuses")
}

// ListAssignees returns users a job can be assigned to.
func (c *Client) ListAssignees(ctx context.Context, bearer string) ([]Option, error) {
	return c.options(ctx, bearer, "/api/users/assignees")
}

func (c *Client) options(ctx context.Context, bearer, path string) ([]Option, error) {
	var out []Option
	if err := c.do(ctx, http.MethodGet, path, bearer, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateJob creates a job and returns it.
func (c *Client) CreateJob(ctx context.Context, bearer string, in JobInput) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodPost, "/api/jobs", bearer, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
