package finance

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

// Handler wires the ledger pages.
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

// MountRoutes registers the ledger routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ledger", h.listTransactions)
	r.Post("/ledger/add", h.handleAdd)
	r.Get("/ledger/{id}/edit", h.showEdit)
	r.Post("/ledger/{id}/edit", h.handleEdit)
	r.Post("/ledger/{id}/toggle_status", h.handleToggleStatus)
	r.Post("/ledger/{id}/delete", h.handleDelete)
}

type ledgerPageData struct {
	Page        *Page
	Filter      ListFilter
	Frequencies []RecurrenceFrequency
	Errors      map[string]string
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, "list transactions", err)
		return
	}
	h.renderPage(w, r, "pages/ledger.html", "Ledger", ledgerPageData{
		Page:        page,
		Filter:      filter,
		Frequencies: Frequencies,
	}, http.StatusOK)
}

func parseListFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
	}
	if t := q.Get("type"); t == string(TypeEntry) || t == string(TypeExit) {
		filter.Type = Type(t)
	}
	if v, err := strconv.Atoi(q.Get("year")); err == nil {
		filter.Year = v
	}
	if v, err := strconv.Atoi(q.Get("month")); err == nil && v >= 1 && v <= 12 {
		filter.Month = time.Month(v)
	}
	if v, err := strconv.ParseInt(q.Get("client_id"), 10, 64); err == nil {
		filter.ClientID = v
	}
	if d, err := time.Parse(dateLayout, q.Get("start_date")); err == nil {
		filter.StartDate = &d
	}
	if d, err := time.Parse(dateLayout, q.Get("end_date")); err == nil {
		filter.EndDate = &d
	}
	return filter
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	input, formErrors := parseAddForm(r)
	if len(formErrors) > 0 {
		h.flash(r, "error", firstError(formErrors))
		http.Redirect(w, r, "/ledger", http.StatusSeeOther)
		return
	}

	count, err := h.service.Add(r.Context(), input)
	if err != nil {
		h.serverError(w, r, "add transaction", err)
		return
	}
	if count > 1 {
		h.flash(r, "success", fmt.Sprintf("%d transactions recorded", count))
	} else {
		h.flash(r, "success", "Transaction recorded")
	}
	http.Redirect(w, r, "/ledger", http.StatusSeeOther)
}

func parseAddForm(r *http.Request) (AddInput, map[string]string) {
	formErrors := make(map[string]string)

	input := AddInput{
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Tags:        strings.TrimSpace(r.PostFormValue("tags")),
	}
	if input.Description == "" {
		formErrors["description"] = "Description is required"
	}

	switch t := r.PostFormValue("type"); t {
	case string(TypeEntry), string(TypeExit):
		input.Type = Type(t)
	default:
		formErrors["type"] = "Select entry or exit"
	}

	value, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("value")))
	if err != nil || !value.IsPositive() {
		formErrors["value"] = "Enter a positive amount"
	}
	input.Value = value

	date, err := time.Parse(dateLayout, r.PostFormValue("date"))
	if err != nil {
		formErrors["date"] = "Enter a valid date"
	}
	input.Date = date

	if r.PostFormValue("recurring") != "" {
		input.Recurring = true
		input.Frequency = RecurrenceFrequency(r.PostFormValue("frequency"))
		if !validFrequency(input.Frequency) {
			formErrors["frequency"] = "Select a valid frequency"
		}
		if r.PostFormValue("kind") == string(SeriesFixed) {
			input.Kind = SeriesFixed
		} else {
			input.Kind = SeriesInstallment
			installments, err := strconv.Atoi(r.PostFormValue("installments"))
			if err != nil || installments < 2 {
				formErrors["installments"] = "Installments must be at least 2"
			}
			input.Installments = installments
		}
	}
	return input, formErrors
}

func validFrequency(f RecurrenceFrequency) bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

type editPageData struct {
	Transaction *Transaction
	Errors      map[string]string
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTransaction(w, r)
	if !ok {
		return
	}
	h.renderPage(w, r, "pages/ledger_edit.html", "Edit transaction", editPageData{Transaction: t}, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTransaction(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	input := EditInput{
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Tags:        strings.TrimSpace(r.PostFormValue("tags")),
		Scope:       parseScope(r.PostFormValue("scope")),
	}
	formErrors := make(map[string]string)
	if input.Description == "" {
		formErrors["description"] = "Description is required"
	}

	switch ft := r.PostFormValue("type"); ft {
	case string(TypeEntry), string(TypeExit):
		input.Type = Type(ft)
	default:
		input.Type = t.Type
	}

	value, err := decimal.NewFromString(strings.TrimSpace(r.PostFormValue("value")))
	if err != nil || !value.IsPositive() {
		formErrors["value"] = "Enter a positive amount"
	}
	input.Value = value

	date, err := time.Parse(dateLayout, r.PostFormValue("date"))
	if err != nil {
		formErrors["date"] = "Enter a valid date"
	}
	input.Date = date

	if len(formErrors) > 0 {
		h.renderPage(w, r, "pages/ledger_edit.html", "Edit transaction", editPageData{
			Transaction: t,
			Errors:      formErrors,
		}, http.StatusBadRequest)
		return
	}

	if _, err := h.service.Edit(r.Context(), t.ID, input); err != nil {
		h.serverError(w, r, "edit transaction", err)
		return
	}
	h.flash(r, "success", "Transaction updated")
	http.Redirect(w, r, "/ledger", http.StatusSeeOther)
}

func parseScope(raw string) EditScope {
	switch EditScope(raw) {
	case ScopeFuture:
		return ScopeFuture
	case ScopeAll:
		return ScopeAll
	default:
		return ScopeSingle
	}
}

func (h *Handler) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTransaction(w, r)
	if !ok {
		return
	}
	status, err := h.service.ToggleStatus(r.Context(), t.ID)
	if err != nil {
		h.serverError(w, r, "toggle status", err)
		return
	}
	if status == StatusRealized {
		h.flash(r, "success", "Transaction marked as realized")
	} else {
		h.flash(r, "success", "Transaction marked as projected")
	}
	http.Redirect(w, r, backToLedger(r), http.StatusSeeOther)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTransaction(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	scope := parseScope(r.PostFormValue("scope"))
	if t.RecurrenceID != nil && scope != ScopeSingle {
		var fromDate *time.Time
		if scope == ScopeFuture {
			fromDate = &t.Date
		}
		removed, err := h.service.DeleteSeries(r.Context(), *t.RecurrenceID, fromDate)
		if err != nil {
			h.serverError(w, r, "delete series", err)
			return
		}
		h.flash(r, "success", fmt.Sprintf("%d transactions deleted", removed))
	} else {
		if err := h.service.Delete(r.Context(), t.ID); err != nil {
			h.serverError(w, r, "delete transaction", err)
			return
		}
		h.flash(r, "success", "Transaction deleted")
	}
	http.Redirect(w, r, backToLedger(r), http.StatusSeeOther)
}

// backToLedger keeps the month the user was looking at after a POST action.
func backToLedger(r *http.Request) string {
	year := r.URL.Query().Get("year")
	month := r.URL.Query().Get("month")
	if year != "" && month != "" {
		return fmt.Sprintf("/ledger?year=%s&month=%s", year, month)
	}
	return "/ledger"
}

func (h *Handler) loadTransaction(w http.ResponseWriter, r *http.Request) (*Transaction, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	t, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "load transaction", err)
		return nil, false
	}
	return t, true
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
