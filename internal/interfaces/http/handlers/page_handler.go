package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/domain/downloads"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/internal/interfaces/http/views"
	"github.com/networknext/portal/pkg/errors"
)

// PageHandler renders the server-side workspaces.
type PageHandler struct {
	views   *views.Renderer
	users   usertool.Service
	catalog *downloads.Catalog
	logger  logging.Logger
}

func NewPageHandler(renderer *views.Renderer, users usertool.Service, catalog *downloads.Catalog, logger logging.Logger) *PageHandler {
	if catalog == nil {
		catalog = downloads.DefaultCatalog()
	}
	return &PageHandler{views: renderer, users: users, catalog: catalog, logger: logger.Named("pages")}
}

// Index sends visitors to the downloads workspace.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/downloads", http.StatusFound)
}

// Downloads handles GET /downloads.
func (h *PageHandler) Downloads(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.PageDownloads, views.DownloadsPage{
		Layout:  views.NewLayout("Downloads", "downloads", user.ProfileFromContext(r.Context())),
		Catalog: h.catalog,
	})
}

// UserTool handles GET /user-tool. A submitted form redirects to the lookup
// URL so results are bookmarkable. "." and ".." survive path escaping and
// would be resolved away by the client, so those ids are looked up in place.
func (h *PageHandler) UserTool(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if id == "" || isDotSegment(id) {
		h.lookup(w, r, id)
		return
	}
	http.Redirect(w, r, "/user-tool/"+url.PathEscape(id), http.StatusSeeOther)
}

func isDotSegment(s string) bool {
	return s == "." || s == ".."
}

// UserToolLookup handles GET /user-tool/{user_id}.
func (h *PageHandler) UserToolLookup(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "user_id")
	if err != nil {
		h.renderUserTool(w, r, http.StatusBadRequest, &usertool.Result{State: usertool.StateError}, views.MessageFailed)
		return
	}
	h.lookup(w, r, userID)
}

func (h *PageHandler) lookup(w http.ResponseWriter, r *http.Request, userID string) {
	viewer := user.ProfileFromContext(r.Context())
	res, err := h.users.Lookup(r.Context(), viewer, userID)
	if err == nil {
		h.renderUserTool(w, r, http.StatusOK, res, "")
		return
	}

	_, status := statusFor(err)
	msg := views.MessageFailed
	if errors.IsForbidden(err) {
		msg = views.MessageForbidden
	}
	if res == nil {
		res = &usertool.Result{UserID: strings.TrimSpace(userID), State: usertool.StateError}
	}
	h.renderUserTool(w, r, status, res, msg)
}

func (h *PageHandler) renderUserTool(w http.ResponseWriter, r *http.Request, status int, res *usertool.Result, msg string) {
	h.render(w, r, status, views.PageUserTool, views.UserToolPage{
		Layout:       views.NewLayout("User Tool", "user-tool", user.ProfileFromContext(r.Context())),
		UserID:       res.UserID,
		State:        res.State,
		Sessions:     res.Sessions,
		ErrorMessage: msg,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page views.Page, data interface{}) {
	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Error("Failed to render page",
			logging.String("page", string(page)),
			logging.String("path", r.URL.Path),
			logging.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
