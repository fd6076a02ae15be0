package handlers

import (
	"net/http"
	"strings"

	"github.com/networknext/portal/internal/application/profile"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
)

// AdminHandler exposes profile administration. Routes are mounted behind the
// admin capability guard.
type AdminHandler struct {
	profiles profile.Service
	logger   logging.Logger
}

func NewAdminHandler(profiles profile.Service, logger logging.Logger) *AdminHandler {
	return &AdminHandler{profiles: profiles, logger: logger.Named("admin")}
}

type SetCompanyRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SetCompany handles PUT /admin/user_profiles/{subject}/company. An empty
// code removes the user from their company.
func (h *AdminHandler) SetCompany(w http.ResponseWriter, r *http.Request) {
	subject, err := pathParam(r, "subject")
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req SetCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	p, err := h.profiles.SetCompany(r.Context(), subject, req.Code, req.Name)
	if err != nil {
		writeAppError(w, err)
		return
	}

	admin := ""
	if id := user.IdentityFromContext(r.Context()); id != nil {
		admin = id.Subject
	}
	h.logger.Info("User company changed",
		logging.String("subject", subject),
		logging.String("company_code", p.CompanyCode),
		logging.String("changed_by", admin))
	writeJSON(w, http.StatusOK, p)
}

// ListProfiles handles GET /admin/user_profiles.
func (h *AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)
	res, err := h.profiles.List(r.Context(), user.ListFilter{
		CompanyCode: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("company"))),
		Offset:      offset,
		Limit:       limit,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
