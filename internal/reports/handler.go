package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obscura-studio/obscura/internal/shared"
	"github.com/obscura-studio/obscura/internal/view"
)

const dateLayout = "2006-01-02"

// Handler wires the dashboard and report pages.
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

// MountRoutes registers the report routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.showDashboard)
	r.Get("/reports/performance", h.showPerformance)
	r.Get("/reports/leads", h.showLeadSources)
	r.Get("/reports/profitability", h.showProfitability)
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.serverError(w, r, "load dashboard", err)
		return
	}
	h.renderPage(w, r, "pages/dashboard.html", "Dashboard", dashboard, http.StatusOK)
}

type performanceData struct {
	Report *Performance
}

func (h *Handler) showPerformance(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Performance(r.Context(), h.rangeFromQuery(r))
	if err != nil {
		h.serverError(w, r, "load performance report", err)
		return
	}
	h.renderPage(w, r, "pages/report_performance.html", "Financial performance", performanceData{Report: report}, http.StatusOK)
}

type leadSourcesData struct {
	Range DateRange
	Rows  []LeadSourceRow
}

func (h *Handler) showLeadSources(w http.ResponseWriter, r *http.Request) {
	dateRange := h.rangeFromQuery(r)
	rows, err := h.service.LeadSources(r.Context(), dateRange)
	if err != nil {
		h.serverError(w, r, "load lead source report", err)
		return
	}
	h.renderPage(w, r, "pages/report_leads.html", "Lead sources", leadSourcesData{
		Range: dateRange,
		Rows:  rows,
	}, http.StatusOK)
}

type profitabilityData struct {
	Range DateRange
	Rows  []ProfitabilityRow
}

func (h *Handler) showProfitability(w http.ResponseWriter, r *http.Request) {
	dateRange := h.rangeFromQuery(r)
	rows, err := h.service.Profitability(r.Context(), dateRange)
	if err != nil {
		h.serverError(w, r, "load profitability report", err)
		return
	}
	h.renderPage(w, r, "pages/report_profitability.html", "Profitability by type", profitabilityData{
		Range: dateRange,
		Rows:  rows,
	}, http.StatusOK)
}

func (h *Handler) rangeFromQuery(r *http.Request) DateRange {
	var start, end *time.Time
	if d, err := time.Parse(dateLayout, r.URL.Query().Get("start_date")); err == nil {
		start = &d
	}
	if d, err := time.Parse(dateLayout, r.URL.Query().Get("end_date")); err == nil {
		end = &d
	}
	return h.service.ResolveRange(start, end)
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
