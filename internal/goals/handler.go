package goals

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
)

const dateLayout = "2006-01-02"

// Handler wires the savings-goal pages.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrfManager: csrf}
}

// MountRoutes registers the goal routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/goals", h.listGoals)
	r.Post("/goals/add", h.handleAdd)
	r.Get("/goals/{id}", h.showDetail)
	r.Post("/goals/{id}/edit", h.handleEdit)
	r.Post("/goals/{id}/conclude", h.handleConclude)
	r.Post("/goals/{id}/delete", h.handleDelete)
	r.Post("/goals/{id}/contributions", h.handleContribute)
	r.Post("/goals/{id}/contributions/{contributionID}/delete", h.handleRemoveContribution)
}

type goalListData struct {
	Active    []Progress
	Concluded []Progress
	Errors    map[string]string
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.List(r.Context(), StatusActive)
	if err != nil {
		h.serverError(w, r, "list goals", err)
		return
	}
	concluded, err := h.service.List(r.Context(), StatusConcluded)
	if err != nil {
		h.serverError(w, r, "list goals", err)
		return
	}
	h.renderPage(w, r, "pages/goals.html", "Goals", goalListData{
		Active:    active,
		Concluded: concluded,
	}, http.StatusOK)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	goal, formErrors := parseGoalForm(r)
	if len(formErrors) > 0 {
		h.flash(r, "error", firstError(formErrors))
		http.Redirect(w, r, "/goals", http.StatusSeeOther)
		return
	}

	if _, err := h.service.Create(r.Context(), goal); err != nil {
		h.serverError(w, r, "create goal", err)
		return
	}
	h.flash(r, "success", fmt.Sprintf("Goal %q created", goal.Name))
	http.Redirect(w, r, "/goals", http.StatusSeeOther)
}

type goalDetailData struct {
	Detail *Detail
}

func (h *Handler) showDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Detail(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, "load goal", err)
		return
	}
	h.renderPage(w, r, "pages/goal_detail.html", detail.Progress.Goal.Name, goalDetailData{Detail: detail}, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	goal, formErrors := parseGoalForm(r)
	goal.ID = id
	if len(formErrors) > 0 {
		h.flash(r, "error", firstError(formErrors))
		http.Redirect(w, r, fmt.Sprintf("/goals/%d", id), http.StatusSeeOther)
		return
	}

	err := h.service.Update(r.Context(), goal)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, "update goal", err)
		return
	}
	h.flash(r, "success", "Goal updated")
	http.Redirect(w, r, fmt.Sprintf("/goals/%d", id), http.StatusSeeOther)
}

func (h *Handler) handleConclude(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	if err := h.service.Conclude(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, "conclude goal", err)
		return
	}
	h.flash(r, "success", "Goal concluded, congratulations")
	http.Redirect(w, r, "/goals", http.StatusSeeOther)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.serverError(w, r, "delete goal", err)
		return
	}
	h.flash(r, "success", "Goal deleted")
	http.Redirect(w, r, "/goals", http.StatusSeeOther)
}

func (h *Handler) handleContribute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	value, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("value")))
	if err != nil || !value.IsPositive() {
		h.flash(r, "error", "Enter a positive amount")
		http.Redirect(w, r, fmt.Sprintf("/goals/%d", id), http.StatusSeeOther)
		return
	}
	contribution := Contribution{GoalID: id, Value: value}
	if d, err := time.Parse(dateLayout, r.PostFormValue("date")); err == nil {
		contribution.Date = d
	} else {
		contribution.Date = time.Now()
	}

	reached, err := h.service.Contribute(r.Context(), contribution)
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrGoalNotActive):
		h.flash(r, "error", "This goal is no longer active")
	case errors.Is(err, ErrGoalMet):
		h.flash(r, "error", "The target is already reached")
	case err != nil:
		h.serverError(w, r, "add contribution", err)
		return
	case reached:
		h.flash(r, "success", "Contribution saved, target reached!")
	default:
		h.flash(r, "success", "Contribution saved")
	}
	http.Redirect(w, r, fmt.Sprintf("/goals/%d", id), http.StatusSeeOther)
}

func (h *Handler) handleRemoveContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.goalID(w, r)
	if !ok {
		return
	}
	contributionID, err := strconv.ParseInt(chi.URLParam(r, "contributionID"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	reverted, err := h.service.RemoveContribution(r.Context(), id, contributionID)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, "remove contribution", err)
		return
	}
	if reverted {
		h.flash(r, "success", "Contribution removed, goal reopened")
	} else {
		h.flash(r, "success", "Contribution removed")
	}
	http.Redirect(w, r, fmt.Sprintf("/goals/%d", id), http.StatusSeeOther)
}

func parseGoalForm(r *http.Request) (Goal, map[string]string) {
	formErrors := make(map[string]string)
	goal := Goal{
		Name:  strings.TrimSpace(r.PostFormValue("name")),
		Notes: strings.TrimSpace(r.PostFormValue("notes")),
	}
	if goal.Name == "" {
		formErrors["name"] = "Name is required"
	}

	target, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("target_value")))
	if err != nil || !target.IsPositive() {
		formErrors["target_value"] = "Enter a positive target amount"
	}
	goal.TargetValue = target

	if raw := r.PostFormValue("target_date"); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			goal.TargetDate = &d
		} else {
			formErrors["target_date"] = "Enter a valid date"
		}
	}
	return goal, formErrors
}

func (h *Handler) goalID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func firstError(formErrors map[string]string) string {
	for _, msg := range formErrors {
		return msg
	}
	return "Invalid form"
}

func (h *Handler) flash(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.Error(action, slog.String("path", r.URL.Path), slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, page, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken := ""
	var flash *shared.FlashMessage
	loggedIn := false
	if sess != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
		flash = sess.PopFlash()
		loggedIn = sess.User() != ""
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		LoggedIn:    loggedIn,
		Data:        data,
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
