package handlers

import (
	"net/http"

	"phatsurf/internal/http/middleware"
	"phatsurf/internal/http/respond"
	"phatsurf/internal/logging"
	"phatsurf/internal/web"

	"github.com/gorilla/csrf"
)

type PageHandler struct {
	sessions Sessions
	pages    Renderer
	log      logging.Logger
}

func NewPageHandler(sessions Sessions, pages Renderer, log logging.Logger) *PageHandler {
	return &PageHandler{sessions: sessions, pages: pages, log: log}
}

// Home renders the landing page, or a greeting for JSON clients.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if respond.WantsJSON(r) {
		respond.JSON(w, http.StatusOK, map[string]string{"message": "Welcome to PhatSurf!"})
		return
	}
	renderPage(w, r, h.pages, h.sessions, h.log, web.PageIndex, web.PageData{Title: "Home"})
}

// Dashboard renders the signed-in user's page. Mounted behind RequireAuth.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	renderPage(w, r, h.pages, h.sessions, h.log, web.PageDashboard, web.PageData{Title: "Dashboard", User: u})
}

// Health always reports healthy; it checks no dependency.
func Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// renderPage pops pending flashes into data and renders page. Rendering
// failures are logged and answered with a bare 500.
func renderPage(w http.ResponseWriter, r *http.Request, pages Renderer, sessions Sessions, log logging.Logger, page string, data web.PageData) {
	flashes, err := sessions.Flashes(w, r)
	if err != nil {
		log.Warn(r.Context(), "failed to read flashes", "error", err)
	}
	data.Flashes = flashes
	data.CSRFField = csrf.TemplateField(r)
	if data.User == nil {
		data.User, _ = middleware.UserFromContext(r.Context())
	}

	if err := pages.Render(w, page, data); err != nil {
		log.Error(r.Context(), "failed to render page", "page", page, "error", err)
		http.Error(w, respond.MsgUnexpected, http.StatusInternalServerError)
	}
}
