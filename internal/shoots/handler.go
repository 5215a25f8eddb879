package shoots

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

	"github.com/obscura-studio/obscura/internal/clients"
	"github.com/obscura-studio/obscura/internal/platform/httpx"
	"github.com/obscura-studio/obscura/internal/settings"
	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
)

const dateLayout = "2006-01-02"

// Handler wires the session pages and the kanban endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	clients     *clients.Service
	settings    *settings.Service
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	now         func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, clientSvc *clients.Service, settingsSvc *settings.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		clients:     clientSvc,
		settings:    settingsSvc,
		templates:   templates,
		csrfManager: csrf,
		now:         time.Now,
	}
}

// MountRoutes registers the session routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sessions", h.listSessions)
	r.Get("/sessions/add", h.showAddSession)
	r.Post("/sessions/add", h.handleAddSession)
	r.Get("/sessions/{id}/edit", h.showEditSession)
	r.Post("/sessions/{id}/edit", h.handleEditSession)
	r.Post("/sessions/{id}/delete", h.handleDeleteSession)
	r.Post("/sessions/{id}/restore", h.handleRestoreSession)

	r.Get("/kanban", h.showBoard)
	r.Post("/kanban/update_status", h.handleUpdateStatus)
	r.Post("/kanban/confirm_selection_date", h.handleConfirmSelectionDate)
}

type sessionListData struct {
	Sessions     []Session
	Filter       ListFilter
	ShowArchived bool
	Clients      []clients.Client
	Types        []settings.SessionType
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Archived: q.Get("status") == "archived",
		Search:   strings.TrimSpace(q.Get("search")),
		SortBy:   q.Get("sort"),
	}
	if v, err := strconv.ParseInt(q.Get("client_id"), 10, 64); err == nil {
		filter.ClientID = v
	}
	if v, err := strconv.ParseInt(q.Get("session_type_id"), 10, 64); err == nil {
		filter.SessionTypeID = v
	}
	if d, err := time.Parse(dateLayout, q.Get("start_date")); err == nil {
		filter.StartDate = &d
	}
	if d, err := time.Parse(dateLayout, q.Get("end_date")); err == nil {
		filter.EndDate = &d
	}

	sessions, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, "list sessions", err)
		return
	}
	clientList, err := h.clients.List(r.Context(), clients.ListFilter{})
	if err != nil {
		h.serverError(w, r, "list clients", err)
		return
	}
	types, err := h.settings.ListTypes(r.Context())
	if err != nil {
		h.serverError(w, r, "list session types", err)
		return
	}

	h.renderPage(w, r, "pages/sessions.html", "Sessions", sessionListData{
		Sessions:     sessions,
		Filter:       filter,
		ShowArchived: filter.Archived,
		Clients:      clientList,
		Types:        types,
	}, http.StatusOK)
}

type sessionFormData struct {
	Session *Session
	Billing BillingState
	Clients []clients.Client
	Types   []settings.SessionType
	Pricing settings.Pricing
	Errors  map[string]string
}

func (h *Handler) showAddSession(w http.ResponseWriter, r *http.Request) {
	data, err := h.formData(r, nil)
	if err != nil {
		h.serverError(w, r, "load session form", err)
		return
	}
	h.renderPage(w, r, "pages/session_form.html", "New session", data, http.StatusOK)
}

func (h *Handler) handleAddSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	input, formErrors := h.parseSessionForm(r)
	clientID, err := h.resolveClient(r)
	if err != nil {
		formErrors["client"] = err.Error()
	}

	if len(formErrors) > 0 {
		data, loadErr := h.formData(r, nil)
		if loadErr != nil {
			h.serverError(w, r, "load session form", loadErr)
			return
		}
		data.Errors = formErrors
		h.renderPage(w, r, "pages/session_form.html", "New session", data, http.StatusBadRequest)
		return
	}

	session, err := h.service.Create(r.Context(), CreateInput{
		ClientID:      clientID,
		SessionTypeID: input.SessionTypeID,
		Date:          input.Date,
		Notes:         input.Notes,
		Billing:       input.Billing,
	})
	if err != nil {
		h.serverError(w, r, "create session", err)
		return
	}

	h.flash(r, "success", fmt.Sprintf("Session %s created", session.Code))
	http.Redirect(w, r, "/sessions", http.StatusSeeOther)
}

func (h *Handler) showEditSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	data, err := h.formData(r, session)
	if err != nil {
		h.serverError(w, r, "load session form", err)
		return
	}
	h.renderPage(w, r, "pages/session_form.html", "Edit session", data, http.StatusOK)
}

func (h *Handler) handleEditSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	input, formErrors := h.parseSessionForm(r)
	if len(formErrors) > 0 {
		data, loadErr := h.formData(r, session)
		if loadErr != nil {
			h.serverError(w, r, "load session form", loadErr)
			return
		}
		data.Errors = formErrors
		h.renderPage(w, r, "pages/session_form.html", "Edit session", data, http.StatusBadRequest)
		return
	}

	if _, err := h.service.Update(r.Context(), session.ID, input); err != nil {
		h.serverError(w, r, "update session", err)
		return
	}

	h.flash(r, "success", fmt.Sprintf("Session %s updated", session.Code))
	http.Redirect(w, r, "/sessions", http.StatusSeeOther)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), session.ID); err != nil {
		h.serverError(w, r, "delete session", err)
		return
	}
	h.flash(r, "success", fmt.Sprintf("Session %s and its transactions were deleted", session.Code))
	http.Redirect(w, r, "/sessions", http.StatusSeeOther)
}

func (h *Handler) handleRestoreSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	restored, err := h.service.Restore(r.Context(), session.ID)
	if err != nil {
		h.serverError(w, r, "restore session", err)
		return
	}
	h.flash(r, "success", fmt.Sprintf("Session %s moved back to %s", restored.Code, restored.KanbanStatus))
	http.Redirect(w, r, "/sessions?status=archived", http.StatusSeeOther)
}

type boardData struct {
	Columns []BoardColumn
	Stages  []string
}

func (h *Handler) showBoard(w http.ResponseWriter, r *http.Request) {
	columns, err := h.service.Board(r.Context(), h.now())
	if err != nil {
		h.serverError(w, r, "load board", err)
		return
	}
	h.renderPage(w, r, "pages/kanban.html", "Production board", boardData{
		Columns: columns,
		Stages:  KanbanStages,
	}, http.StatusOK)
}

type updateStatusRequest struct {
	SessionID int64  `json:"session_id"`
	NewStatus string `json:"new_status"`
}

type stageChangeResponse struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message,omitempty"`
	Archived       bool    `json:"archived"`
	ActionRequired *string `json:"action_required"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}

	change, session, err := h.service.RequestStageChange(r.Context(), req.SessionID, req.NewStatus)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "session not found")
		return
	case errors.Is(err, ErrUnknownStage):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown kanban stage")
		return
	case err != nil:
		h.logger.Error("update kanban status", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not update the session")
		return
	}

	if change.RequiresConfirmation {
		action := "confirm_selection_date"
		httpx.JSON(w, http.StatusOK, stageChangeResponse{
			Success:        true,
			ActionRequired: &action,
		})
		return
	}

	resp := stageChangeResponse{Success: true, Archived: change.Archived}
	switch {
	case change.Archived:
		resp.Message = fmt.Sprintf("Session %s archived", session.Code)
	case change.Applied:
		resp.Message = fmt.Sprintf("Session %s moved to %s", session.Code, session.KanbanStatus)
	default:
		resp.Message = "Session already in this stage"
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type confirmSelectionRequest struct {
	SessionID     int64  `json:"session_id"`
	SelectionDate string `json:"selection_date"`
}

func (h *Handler) handleConfirmSelectionDate(w http.ResponseWriter, r *http.Request) {
	var req confirmSelectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON payload")
		return
	}
	date, err := time.Parse(dateLayout, req.SelectionDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "selection_date must be YYYY-MM-DD")
		return
	}

	session, err := h.service.ConfirmSelectionDate(r.Context(), req.SessionID, date)
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "session not found")
		return
	case err != nil:
		h.logger.Error("confirm selection date", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not record the selection date")
		return
	}

	httpx.JSON(w, http.StatusOK, stageChangeResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s moved to %s", session.Code, EditingStage),
	})
}

// formData assembles the select options and billing defaults for the session
// form. For new sessions the unit prices come from the configured defaults;
// for edits the recorded paid flags are derived from the ledger.
func (h *Handler) formData(r *http.Request, session *Session) (sessionFormData, error) {
	clientList, err := h.clients.List(r.Context(), clients.ListFilter{})
	if err != nil {
		return sessionFormData{}, fmt.Errorf("list clients: %w", err)
	}
	types, err := h.settings.ListTypes(r.Context())
	if err != nil {
		return sessionFormData{}, fmt.Errorf("list session types: %w", err)
	}
	pricing, err := h.settings.Pricing(r.Context())
	if err != nil {
		return sessionFormData{}, fmt.Errorf("load pricing: %w", err)
	}

	data := sessionFormData{
		Session: session,
		Clients: clientList,
		Types:   types,
		Pricing: pricing,
	}
	if session != nil {
		state, err := h.service.BillingState(r.Context(), session)
		if err != nil {
			return sessionFormData{}, fmt.Errorf("billing state: %w", err)
		}
		data.Billing = state
	}
	return data, nil
}

// resolveClient returns the selected client id, creating the client first when
// the form asked for a new one.
func (h *Handler) resolveClient(r *http.Request) (int64, error) {
	if r.PostFormValue("is_new_client") != "" {
		name := strings.TrimSpace(r.PostFormValue("new_client_name"))
		if name == "" {
			return 0, errors.New("new client name is required")
		}
		id, err := h.clients.Create(r.Context(), clients.Client{
			Name:       name,
			Whatsapp:   strings.TrimSpace(r.PostFormValue("new_client_whatsapp")),
			LeadSource: r.PostFormValue("new_client_lead_source"),
		})
		if err != nil {
			if errors.Is(err, clients.ErrNameTaken) {
				return 0, errors.New("a client with this name already exists")
			}
			return 0, fmt.Errorf("create client: %w", err)
		}
		return id, nil
	}

	id, err := strconv.ParseInt(r.PostFormValue("client_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("select a client")
	}
	return id, nil
}

func (h *Handler) parseSessionForm(r *http.Request) (UpdateInput, map[string]string) {
	formErrors := make(map[string]string)

	typeID, err := strconv.ParseInt(r.PostFormValue("session_type_id"), 10, 64)
	if err != nil || typeID <= 0 {
		formErrors["session_type_id"] = "Select a session type"
	}
	date, err := time.Parse(dateLayout, r.PostFormValue("session_date"))
	if err != nil {
		formErrors["session_date"] = "Enter a valid date"
	}

	billing := BillingIntent{
		TotalValue:          parseDecimal(r, "total_value", formErrors),
		DownPayment:         parseDecimal(r, "down_payment", formErrors),
		Cost:                parseDecimal(r, "session_cost", formErrors),
		ExtraPhotoUnitPrice: parseDecimal(r, "extra_photo_unit_price", formErrors),
		PrintingUnitPrice:   parseDecimal(r, "printing_unit_price", formErrors),
		ExtraPhotosQty:      parseQty(r, "extra_photos_qty", formErrors),
		PrintingQty:         parseQty(r, "printing_qty", formErrors),
		DownPaymentPaid:     r.PostFormValue("down_payment_paid") != "",
		TotalValuePaid:      r.PostFormValue("total_value_paid") != "",
		ExtraPhotosPaid:     r.PostFormValue("extra_photos_paid") != "",
		PrintingPaid:        r.PostFormValue("printing_paid") != "",
	}
	if billing.DownPayment.GreaterThan(billing.TotalValue) {
		formErrors["down_payment"] = "Down payment cannot exceed the total value"
	}

	return UpdateInput{
		SessionTypeID: typeID,
		Date:          date,
		Notes:         strings.TrimSpace(r.PostFormValue("notes")),
		Billing:       billing,
	}, formErrors
}

func parseDecimal(r *http.Request, field string, formErrors map[string]string) decimal.Decimal {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		formErrors[field] = "Enter a valid amount"
		return decimal.Zero
	}
	return value
}

func parseQty(r *http.Request, field string, formErrors map[string]string) int {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		formErrors[field] = "Enter a valid quantity"
		return 0
	}
	return value
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	session, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "load session", err)
		return nil, false
	}
	return session, true
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

// UpdateStatusForTest exposes the kanban JSON handler for tests.
func (h *Handler) UpdateStatusForTest(w http.ResponseWriter, r *http.Request) {
	h.handleUpdateStatus(w, r)
}

// ConfirmSelectionDateForTest exposes the confirmation JSON handler for tests.
func (h *Handler) ConfirmSelectionDateForTest(w http.ResponseWriter, r *http.Request) {
	h.handleConfirmSelectionDate(w, r)
}
