package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type dashboardData struct {
	ContractID    string
	Total         uint64
	LastOwner     string
	Error         string
	StreamEnabled bool
}

// handleDashboard serves the totals page.
func handleDashboard(renderer *TemplateRenderer, tickets TicketService, streamEnabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := dashboardData{
			ContractID:    tickets.ContractID(),
			LastOwner:     "N/A",
			StreamEnabled: streamEnabled,
		}

		totals, err := tickets.GetTotals(r.Context())
		if err != nil {
			renderer.logger.Error("failed to load totals for dashboard", "error", err)
			data.Error = err.Error()
		} else {
			data.Total = totals.Total
			if totals.LastOwner != nil {
				data.LastOwner = *totals.LastOwner
			}
		}

		if err := renderer.Render(w, "dashboard.html", data); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
