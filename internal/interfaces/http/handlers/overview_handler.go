package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/networknext/portal/internal/application/overview"
	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

// OverviewHandler serves the portal-wide session activity API.
type OverviewHandler struct {
	overview overview.Service
	logger   logging.Logger
}

func NewOverviewHandler(svc overview.Service, logger logging.Logger) *OverviewHandler {
	return &OverviewHandler{overview: svc, logger: logger.Named("overview")}
}

// SessionCounts handles GET /portal/session_counts.
func (h *OverviewHandler) SessionCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.overview.Counts(r.Context(), user.ProfileFromContext(r.Context()))
	if err != nil {
		h.logFailure(r, err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Sessions handles GET /portal/sessions/{begin}/{end}.
func (h *OverviewHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	begin, err := rankParam(r, "begin")
	if err != nil {
		writeAppError(w, err)
		return
	}
	end, err := rankParam(r, "end")
	if err != nil {
		writeAppError(w, err)
		return
	}
	page, err := h.overview.Recent(r.Context(), user.ProfileFromContext(r.Context()), begin, end)
	if err != nil {
		h.logFailure(r, err)
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OverviewHandler) logFailure(r *http.Request, err error) {
	if _, status := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("Overview request failed", logging.String("path", r.URL.Path), logging.Err(err))
	}
}

// rankParam parses a non-negative decimal position in the recent list.
func rankParam(r *http.Request, name string) (int, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 31)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidParam, name+" must be a non-negative integer")
	}
	return int(v), nil
}
