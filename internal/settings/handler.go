package settings

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
)

// Handler wires the settings pages: pricing defaults and session types.
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

// MountRoutes registers the settings routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.showSettings)
	r.Post("/settings/pricing", h.handleSavePricing)
	r.Post("/settings/types/add", h.handleAddType)
	r.Post("/settings/types/{id}/edit", h.handleEditType)
	r.Post("/settings/types/{id}/delete", h.handleDeleteType)
}

type settingsPageData struct {
	Pricing Pricing
	Types   []SessionType
	Errors  map[string]string
}

func (h *Handler) showSettings(w http.ResponseWriter, r *http.Request) {
	data, err := h.pageData(r)
	if err != nil {
		h.serverError(w, r, "load settings", err)
		return
	}
	h.renderPage(w, r, data, http.StatusOK)
}

func (h *Handler) handleSavePricing(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	formErrors := make(map[string]string)
	pricing := Pricing{
		ExtraPhotoPrice: parsePrice(r, "extra_photo_price", formErrors),
		PrintingPrice:   parsePrice(r, "printing_price", formErrors),
	}
	if len(formErrors) > 0 {
		data, err := h.pageData(r)
		if err != nil {
			h.serverError(w, r, "load settings", err)
			return
		}
		data.Errors = formErrors
		h.renderPage(w, r, data, http.StatusBadRequest)
		return
	}

	if err := h.service.SavePricing(r.Context(), pricing); err != nil {
		h.serverError(w, r, "save pricing", err)
		return
	}
	h.flash(r, "success", "Default prices saved")
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (h *Handler) handleAddType(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, formErrors := parseTypeForm(r)
	if len(formErrors) == 0 {
		_, err := h.service.CreateType(r.Context(), t)
		switch {
		case errors.Is(err, ErrDuplicate):
			formErrors["type_name"] = "A session type with this name or abbreviation already exists"
		case err != nil:
			h.serverError(w, r, "create session type", err)
			return
		default:
			h.flash(r, "success", "Session type created")
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}
	}

	data, err := h.pageData(r)
	if err != nil {
		h.serverError(w, r, "load settings", err)
		return
	}
	data.Errors = formErrors
	h.renderPage(w, r, data, http.StatusBadRequest)
}

func (h *Handler) handleEditType(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	t, formErrors := parseTypeForm(r)
	t.ID = id
	if len(formErrors) == 0 {
		err := h.service.UpdateType(r.Context(), t)
		switch {
		case errors.Is(err, ErrNotFound):
			http.NotFound(w, r)
			return
		case errors.Is(err, ErrDuplicate):
			formErrors["type_name"] = "A session type with this name or abbreviation already exists"
		case err != nil:
			h.serverError(w, r, "update session type", err)
			return
		default:
			h.flash(r, "success", "Session type updated")
			http.Redirect(w, r, "/settings", http.StatusSeeOther)
			return
		}
	}

	data, loadErr := h.pageData(r)
	if loadErr != nil {
		h.serverError(w, r, "load settings", loadErr)
		return
	}
	data.Errors = formErrors
	h.renderPage(w, r, data, http.StatusBadRequest)
}

func (h *Handler) handleDeleteType(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	err = h.service.DeleteType(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ErrTypeInUse):
		h.flash(r, "error", "This type is used by existing sessions and cannot be deleted")
	case err != nil:
		h.serverError(w, r, "delete session type", err)
		return
	default:
		h.flash(r, "success", "Session type deleted")
	}
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func parseTypeForm(r *http.Request) (SessionType, map[string]string) {
	formErrors := make(map[string]string)
	t := SessionType{
		Name:         strings.TrimSpace(r.PostFormValue("type_name")),
		Abbreviation: strings.TrimSpace(r.PostFormValue("abbreviation")),
	}
	if t.Name == "" {
		formErrors["type_name"] = "Name is required"
	}
	if t.Abbreviation == "" {
		formErrors["abbreviation"] = "Abbreviation is required"
	}
	t.SelectionDeadlineDays = parseDays(r, "selection_deadline_days", formErrors)
	t.EditingDeadlineDays = parseDays(r, "editing_deadline_days", formErrors)
	return t, formErrors
}

func parseDays(r *http.Request, field string, formErrors map[string]string) int {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		formErrors[field] = "Enter a valid number of days"
		return 0
	}
	return days
}

func parsePrice(r *http.Request, field string, formErrors map[string]string) decimal.Decimal {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		formErrors[field] = "Enter a valid price"
		return decimal.Zero
	}
	return value
}

func (h *Handler) pageData(r *http.Request) (settingsPageData, error) {
	pricing, err := h.service.Pricing(r.Context())
	if err != nil {
		return settingsPageData{}, err
	}
	types, err := h.service.ListTypes(r.Context())
	if err != nil {
		return settingsPageData{}, err
	}
	return settingsPageData{Pricing: pricing, Types: types}, nil
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

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, data settingsPageData, status int) {
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
		Title:       "Settings",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		LoggedIn:    loggedIn,
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/settings.html", viewData); err != nil {
		h.logger.Error("render page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
