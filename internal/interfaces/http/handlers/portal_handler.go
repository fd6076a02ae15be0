package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/domain/downloads"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// PortalHandler serves the JSON API behind the workspaces.
type PortalHandler struct {
	users   usertool.Service
	catalog *downloads.Catalog
	logger  logging.Logger
}

func NewPortalHandler(users usertool.Service, catalog *downloads.Catalog, logger logging.Logger) *PortalHandler {
	if catalog == nil {
		catalog = downloads.DefaultCatalog()
	}
	return &PortalHandler{users: users, catalog: catalog, logger: logger.Named("portal")}
}

// MeResponse carries the viewer's profile and capability flags.
type MeResponse struct {
	UserProfile MeProfile `json:"user_profile"`
	user.Capabilities
}

type MeProfile struct {
	Company string `json:"company"`
	Email   string `json:"email,omitempty"`
}

type UserSessionsResponse struct {
	UserID   string          `json:"user_id"`
	Sessions []session.Entry `json:"sessions"`
}

// Me handles GET /portal/me. Anonymous callers receive the default flags and
// an empty company.
func (h *PortalHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := user.ProfileFromContext(r.Context())
	resp := MeResponse{Capabilities: p.Capabilities()}
	if p != nil {
		resp.UserProfile = MeProfile{Company: p.CompanyName, Email: p.Email}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Downloads handles GET /portal/downloads.
func (h *PortalHandler) Downloads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}

// UserSessions handles GET /portal/user_sessions/{user_id}.
func (h *PortalHandler) UserSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathParam(r, "user_id")
	if err != nil {
		writeAppError(w, err)
		return
	}
	res, err := h.users.Lookup(r.Context(), user.ProfileFromContext(r.Context()), userID)
	if err != nil {
		h.logFailure(r, err)
		writeAppError(w, err)
		return
	}
	if res.State == usertool.StateNoInput {
		writeAppError(w, errors.New(errors.ErrCodeUserIDInvalid, "user id is required"))
		return
	}
	writeJSON(w, http.StatusOK, UserSessionsResponse{UserID: res.UserID, Sessions: res.Sessions})
}

// Session handles GET /portal/session/{session_id}.
func (h *PortalHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "session_id")
	if err != nil {
		writeAppError(w, err)
		return
	}
	e, err := h.users.GetSession(r.Context(), user.ProfileFromContext(r.Context()), id)
	if err != nil {
		h.logFailure(r, err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *PortalHandler) logFailure(r *http.Request, err error) {
	if _, status := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("Portal request failed", logging.String("path", r.URL.Path), logging.Err(err))
	}
}

// pathParam returns the unescaped chi URL parameter. chi matches against
// RawPath when the request has one, so parameters may still be escaped.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	out, err := url.PathUnescape(v)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidParam, "invalid "+name)
	}
	return out, nil
}
