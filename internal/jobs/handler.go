// Package jobs serves the work-order pages: lists, the edit form, comments.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/worktrack/worktrack/internal/authctx"
	"github.com/worktrack/worktrack/internal/backend"
	"github.com/worktrack/worktrack/internal/shared"
	"github.com/worktrack/worktrack/internal/view"
)

// Backend is the part of the REST API the job pages need.
type Backend interface {
	ListJobs(ctx context.Context, bearer string, f backend.JobFilter) ([]backend.Job, error)
	OverdueJobs(ctx context.Context, bearer string) ([]backend.Job, error)
	GetJob(ctx context.Context, bearer string, id int64) (*backend.Job, error)
	CreateJob(ctx context.Context, bearer string, in backend.JobInput) (*backend.Job, error)
	UpdateJob(ctx context.Context, bearer string, id int64, in backend.JobInput) error
	DeleteJob(ctx context.Context, bearer string, id int64) error
	AddComment(ctx context.Context, bearer string, jobID int64, content string) error
	ListCategories(ctx context.Context, bearer string) ([]backend.Option, error)
	ListStatuses(ctx context.Context, bearer string) ([]backend.Option, error)
	ListAssignees(ctx context.Context, bearer string) ([]backend.Option, error)
}

var _ Backend = (*backend.Client)(nil)

const dateLayout = "2006-01-02"

// Handler serves job pages. Every backend call goes through the guard.
type Handler struct {
	logger    *slog.Logger
	backend   Backend
	templates *view.Engine
	csrf      *shared.CSRFManager
	guard     *authctx.Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, b Backend, templates *view.Engine, csrf *shared.CSRFManager, guard *authctx.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		backend:   b,
		templates: templates,
		csrf:      csrf,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/list", h.list)
	r.Get("/jobs/over-due-date", h.overdue)
	r.Get("/jobs/new", h.newJob)
	r.Post("/jobs/new", h.create)
	r.Get("/jobs/{id}/edit", h.edit)
	r.Post("/jobs/{id}/edit", h.save)
	r.Post("/jobs/{id}/comments", h.addComment)
	r.Post("/jobs/{id}/delete", h.remove)
}

type listPageData struct {
	Jobs   []backend.Job
	Search string
}

type jobForm struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=5000"`
	CategoryID  int64  `validate:"gt=0"`
	StatusID    int64  `validate:"gt=0"`
	AssigneeID  int64  `validate:"gte=0"`
	DueDate     string `validate:"omitempty,datetime=2006-01-02"`
}

type editPageData struct {
	Action     string
	Job        *backend.Job
	Form       jobForm
	Errors     map[string]string
	Categories []backend.Option
	Statuses   []backend.Option
	Assignees  []backend.Option
}

var errInvalidForm = errors.New("jobs: invalid form")

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	data := listPageData{Search: strings.TrimSpace(r.URL.Query().Get("search"))}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	err := h.guard.Do(w, r, "jobs.list", func(ctx context.Context, sess authctx.Session) error {
		jobs, err := h.backend.ListJobs(ctx, sess.Token, backend.JobFilter{Page: page, Search: data.Search})
		data.Jobs = jobs
		return err
	})
	if h.handled(w, r, err, "list jobs") {
		return
	}
	h.render(w, r, http.StatusOK, "pages/jobs_list.html", "Jobs", data)
}

func (h *Handler) overdue(w http.ResponseWriter, r *http.Request) {
	var data listPageData
	err := h.guard.Do(w, r, "jobs.overdue", func(ctx context.Context, sess authctx.Session) error {
		jobs, err := h.backend.OverdueJobs(ctx, sess.Token)
		data.Jobs = jobs
		return err
	})
	if h.handled(w, r, err, "overdue jobs") {
		return
	}
	h.render(w, r, http.StatusOK, "pages/jobs_list.html", "Overdue jobs", data)
}

func (h *Handler) newJob(w http.ResponseWriter, r *http.Request) {
	data := editPageData{Action: "/jobs/new"}
	err := h.guard.Do(w, r, "jobs.new", func(ctx context.Context, sess authctx.Session) error {
		return h.loadOptions(ctx, sess.Token, &data)
	})
	if h.handled(w, r, err, "load job options") {
		return
	}
	h.render(w, r, http.StatusOK, "pages/job_edit.html", "New job", data)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	data := editPageData{Action: "/jobs/new", Form: formFromRequest(r)}
	var created *backend.Job
	err := h.guard.Do(w, r, "jobs.create", func(ctx context.Context, sess authctx.Session) error {
		input, errs := h.parse(data.Form)
		if len(errs) > 0 {
			data.Errors = errs
			if err := h.loadOptions(ctx, sess.Token, &data); err != nil {
				return err
			}
			return errInvalidForm
		}
		job, err := h.backend.CreateJob(ctx, sess.Token, input)
		created = job
		return err
	})
	switch {
	case err == nil:
		h.flash(r, shared.FlashSuccess, "Job created")
		http.Redirect(w, r, fmt.Sprintf("/jobs/%d/edit", created.ID), http.StatusSeeOther)
	case errors.Is(err, errInvalidForm):
		h.render(w, r, http.StatusBadRequest, "pages/job_edit.html", "New job", data)
	case errors.Is(err, authctx.ErrSessionExpired):
	default:
		h.failed(w, r, err, "create job", "/jobs/new")
	}
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	data := editPageData{Action: fmt.Sprintf("/jobs/%d/edit", id)}
	err := h.guard.Do(w, r, "jobs.edit", func(ctx context.Context, sess authctx.Session) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			job, err := h.backend.GetJob(gctx, sess.Token, id)
			data.Job = job
			return err
		})
		g.Go(func() error {
			return h.loadOptions(gctx, sess.Token, &data)
		})
		return g.Wait()
	})
	if h.handled(w, r, err, "load job") {
		return
	}
	if data.Job == nil {
		if err != nil {
			// The notice is already queued; show it on the list.
			http.Redirect(w, r, "/jobs/list", http.StatusSeeOther)
			return
		}
		http.NotFound(w, r)
		return
	}
	data.Form = formFromJob(data.Job)
	h.render(w, r, http.StatusOK, "pages/job_edit.html", data.Job.Title, data)
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	back := fmt.Sprintf("/jobs/%d/edit", id)
	data := editPageData{Action: back, Form: formFromRequest(r)}
	err := h.guard.Do(w, r, "jobs.save", func(ctx context.Context, sess authctx.Session) error {
		input, errs := h.parse(data.Form)
		if len(errs) > 0 {
			data.Errors = errs
			job, err := h.backend.GetJob(ctx, sess.Token, id)
			if err != nil {
				return err
			}
			data.Job = job
			if err := h.loadOptions(ctx, sess.Token, &data); err != nil {
				return err
			}
			return errInvalidForm
		}
		return h.backend.UpdateJob(ctx, sess.Token, id, input)
	})
	switch {
	case err == nil:
		h.flash(r, shared.FlashSuccess, "Job saved")
		http.Redirect(w, r, back, http.StatusSeeOther)
	case errors.Is(err, errInvalidForm):
		h.render(w, r, http.StatusBadRequest, "pages/job_edit.html", data.Job.Title, data)
	case errors.Is(err, authctx.ErrSessionExpired):
	default:
		h.failed(w, r, err, "save job", back)
	}
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf("/jobs/%d/edit", id)
	content := strings.TrimSpace(r.PostFormValue("content"))
	if content == "" {
		h.flash(r, shared.FlashError, "Comment cannot be empty")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	err := h.guard.Do(w, r, "jobs.comment", func(ctx context.Context, sess authctx.Session) error {
		return h.backend.AddComment(ctx, sess.Token, id, content)
	})
	switch {
	case err == nil:
		h.flash(r, shared.FlashSuccess, "Comment added")
		http.Redirect(w, r, back, http.StatusSeeOther)
	case errors.Is(err, authctx.ErrSessionExpired):
	default:
		h.failed(w, r, err, "add comment", back)
	}
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}
	err := h.guard.Do(w, r, "jobs.delete", func(ctx context.Context, sess authctx.Session) error {
		return h.backend.DeleteJob(ctx, sess.Token, id)
	})
	switch {
	case err == nil:
		h.flash(r, shared.FlashSuccess, "Job deleted")
		http.Redirect(w, r, "/jobs/list", http.StatusSeeOther)
	case errors.Is(err, authctx.ErrSessionExpired):
	default:
		h.failed(w, r, err, "delete job", fmt.Sprintf("/jobs/%d/edit", id))
	}
}

// loadOptions fetches the select lists concurrently; either may finish first.
func (h *Handler) loadOptions(ctx context.Context, bearer string, data *editPageData) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts, err := h.backend.ListCategories(gctx, bearer)
		data.Categories = opts
		return err
	})
	g.Go(func() error {
		opts, err := h.backend.ListStatuses(gctx, bearer)
		data.Statuses = opts
		return err
	})
	g.Go(func() error {
		opts, err := h.backend.ListAssignees(gctx, bearer)
		data.Assignees = opts
		return err
	})
	return g.Wait()
}

func (h *Handler) parse(form jobForm) (backend.JobInput, map[string]string) {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
		return backend.JobInput{}, errs
	}
	input := backend.JobInput{
		Title:       strings.TrimSpace(form.Title),
		Description: strings.TrimSpace(form.Description),
		CategoryID:  form.CategoryID,
		StatusID:    form.StatusID,
		AssigneeID:  form.AssigneeID,
	}
	if form.DueDate != "" {
		due, err := time.Parse(dateLayout, form.DueDate)
		if err != nil {
			errs["DueDate"] = "invalid date"
			return backend.JobInput{}, errs
		}
		input.DueDate = &due
	}
	return input, nil
}

// handled deals with a failed page fetch. Expired sessions were already
// redirected by the guard; other failures keep the session, flash and fall
// back to rendering what was loaded.
func (h *Handler) handled(w http.ResponseWriter, r *http.Request, err error, action string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, authctx.ErrSessionExpired) {
		return true
	}
	if errors.Is(err, backend.ErrNotFound) {
		http.NotFound(w, r)
		return true
	}
	h.logger.Warn(action, slog.Any("error", err))
	h.flash(r, shared.FlashError, backend.UserMessage(err))
	return false
}

func (h *Handler) failed(w http.ResponseWriter, r *http.Request, err error, action, back string) {
	h.logger.Warn(action, slog.Any("error", err))
	h.flash(r, shared.FlashError, backend.UserMessage(err))
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind, msg string) {
	shared.StorageFromContext(r.Context()).AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	viewData := view.Page(r, h.csrf, title, data)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render", slog.String("template", name), slog.Any("error", err))
	}
}

func jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func formFromRequest(r *http.Request) jobForm {
	num := func(key string) int64 {
		v, _ := strconv.ParseInt(r.PostFormValue(key), 10, 64)
		return v
	}
	return jobForm{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		CategoryID:  num("category_id"),
		StatusID:    num("status_id"),
		AssigneeID:  num("assignee_id"),
		DueDate:     strings.TrimSpace(r.PostFormValue("due_date")),
	}
}

func formFromJob(job *backend.Job) jobForm {
	form := jobForm{
		Title:       job.Title,
		Description: job.Description,
		CategoryID:  job.CategoryID,
		StatusID:    job.StatusID,
		AssigneeID:  job.AssigneeID,
	}
	if job.DueDate != nil {
		form.DueDate = job.DueDate.Format(dateLayout)
	}
	return form
}
