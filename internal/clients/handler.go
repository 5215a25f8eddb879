package clients

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
)

const dateLayout = "2006-01-02"

// Handler wires the client and CRM pages.
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

// MountRoutes registers the client routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clients", h.listClients)
	r.Get("/clients/add", h.showAdd)
	r.Post("/clients/add", h.handleAdd)
	r.Get("/clients/{id}/edit", h.showEdit)
	r.Post("/clients/{id}/edit", h.handleEdit)
	r.Get("/clients/detail/{name}", h.showDetail)
	r.Post("/clients/{id}/interactions", h.handleAddInteraction)
	r.Post("/clients/interactions/{id}/delete", h.handleDeleteInteraction)
}

type clientListData struct {
	Clients     []Client
	Filter      ListFilter
	LeadSources []string
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		LeadSource: q.Get("lead_source"),
		Tags:       strings.TrimSpace(q.Get("tags")),
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.serverError(w, r, "list clients", err)
		return
	}
	h.renderPage(w, r, "pages/clients.html", "Clients", clientListData{
		Clients:     list,
		Filter:      filter,
		LeadSources: LeadSources,
	}, http.StatusOK)
}

type clientFormData struct {
	Client      *Client
	LeadSources []string
	Errors      map[string]string
}

func (h *Handler) showAdd(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, "pages/client_form.html", "New client", clientFormData{LeadSources: LeadSources}, http.StatusOK)
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, formErrors := parseClientForm(r)
	if len(formErrors) == 0 {
		_, err := h.service.Create(r.Context(), client)
		switch {
		case errors.Is(err, ErrNameTaken):
			formErrors["name"] = "A client with this name already exists"
		case err != nil:
			h.serverError(w, r, "create client", err)
			return
		default:
			h.flash(r, "success", fmt.Sprintf("Client %s created", client.Name))
			http.Redirect(w, r, "/clients", http.StatusSeeOther)
			return
		}
	}

	h.renderPage(w, r, "pages/client_form.html", "New client", clientFormData{
		Client:      &client,
		LeadSources: LeadSources,
		Errors:      formErrors,
	}, http.StatusBadRequest)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}
	h.renderPage(w, r, "pages/client_form.html", "Edit client", clientFormData{
		Client:      client,
		LeadSources: LeadSources,
	}, http.StatusOK)
}

func (h *Handler) handleEdit(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadClient(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, formErrors := parseClientForm(r)
	client.ID = existing.ID
	if len(formErrors) == 0 {
		err := h.service.Update(r.Context(), client)
		switch {
		case errors.Is(err, ErrNameTaken):
			formErrors["name"] = "A client with this name already exists"
		case err != nil:
			h.serverError(w, r, "update client", err)
			return
		default:
			h.flash(r, "success", fmt.Sprintf("Client %s updated", client.Name))
			http.Redirect(w, r, "/clients/detail/"+url.PathEscape(client.Name), http.StatusSeeOther)
			return
		}
	}

	h.renderPage(w, r, "pages/client_form.html", "Edit client", clientFormData{
		Client:      &client,
		LeadSources: LeadSources,
		Errors:      formErrors,
	}, http.StatusBadRequest)
}

type clientDetailData struct {
	Detail   *Detail
	Channels []string
}

func (h *Handler) showDetail(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	detail, err := h.service.DetailByName(r.Context(), name)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, "load client detail", err)
		return
	}
	h.renderPage(w, r, "pages/client_detail.html", detail.Client.Name, clientDetailData{
		Detail:   detail,
		Channels: InteractionChannels,
	}, http.StatusOK)
}

func (h *Handler) handleAddInteraction(w http.ResponseWriter, r *http.Request) {
	client, ok := h.loadClient(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	log := InteractionLog{
		ClientID: client.ID,
		Channel:  r.PostFormValue("channel"),
		Notes:    strings.TrimSpace(r.PostFormValue("notes")),
	}
	if d, err := time.Parse(dateLayout, r.PostFormValue("date")); err == nil {
		log.Date = d
	}

	if _, err := h.service.AddInteraction(r.Context(), log); err != nil {
		h.serverError(w, r, "add interaction", err)
		return
	}
	h.flash(r, "success", "Interaction logged")
	http.Redirect(w, r, "/clients/detail/"+url.PathEscape(client.Name), http.StatusSeeOther)
}

func (h *Handler) handleDeleteInteraction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	owner, err := h.service.DeleteInteraction(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, "delete interaction", err)
		return
	}
	h.flash(r, "success", "Interaction removed")
	http.Redirect(w, r, "/clients/detail/"+url.PathEscape(owner.Name), http.StatusSeeOther)
}

func parseClientForm(r *http.Request) (Client, map[string]string) {
	formErrors := make(map[string]string)

	client := Client{
		Name:          strings.TrimSpace(r.PostFormValue("name")),
		Email:         strings.TrimSpace(r.PostFormValue("email")),
		Whatsapp:      strings.TrimSpace(r.PostFormValue("whatsapp")),
		LeadSource:    r.PostFormValue("lead_source"),
		Tags:          strings.TrimSpace(r.PostFormValue("tags")),
		AddressStreet: strings.TrimSpace(r.PostFormValue("address_street")),
		AddressCity:   strings.TrimSpace(r.PostFormValue("address_city")),
		AddressState:  strings.TrimSpace(r.PostFormValue("address_state")),
		AddressZip:    strings.TrimSpace(r.PostFormValue("address_zip")),
		Notes:         strings.TrimSpace(r.PostFormValue("notes")),
	}
	if client.Name == "" {
		formErrors["name"] = "Name is required"
	}
	if raw := r.PostFormValue("birthday"); raw != "" {
		if d, err := time.Parse(dateLayout, raw); err == nil {
			client.Birthday = &d
		} else {
			formErrors["birthday"] = "Enter a valid date"
		}
	}
	return client, formErrors
}

func (h *Handler) loadClient(w http.ResponseWriter, r *http.Request) (*Client, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	client, err := h.service.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.serverError(w, r, "load client", err)
		return nil, false
	}
	return client, true
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
