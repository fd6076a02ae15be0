package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/networknext/portal/internal/application/overview"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

func newOverviewHandler(svc *MockOverviewService) *OverviewHandler {
	return NewOverviewHandler(svc, logging.NewNopLogger())
}

func TestOverviewHandler_SessionCounts(t *testing.T) {
	svc := &MockOverviewService{}
	svc.On("Counts", mock.Anything, memberViewer).Return(&session.Counts{Total: 40, Next: 12}, nil)

	w := httptest.NewRecorder()
	newOverviewHandler(svc).SessionCounts(w, asViewer(httptest.NewRequest(http.MethodGet, "/portal/session_counts", nil), memberViewer))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_session_count":40,"next_session_count":12}`, w.Body.String())
}

func TestOverviewHandler_SessionCounts_Forbidden(t *testing.T) {
	svc := &MockOverviewService{}
	svc.On("Counts", mock.Anything, mock.Anything).Return(nil, errors.Forbidden("viewer may not see session counts"))

	w := httptest.NewRecorder()
	newOverviewHandler(svc).SessionCounts(w, httptest.NewRequest(http.MethodGet, "/portal/session_counts", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOverviewHandler_Sessions(t *testing.T) {
	svc := &MockOverviewService{}
	svc.On("Recent", mock.Anything, adminViewer, 0, 2).Return(&overview.RecentPage{
		Begin: 0, End: 2, Sessions: []session.Entry{{SessionID: 0xbeef}},
	}, nil)

	r := asViewer(httptest.NewRequest(http.MethodGet, "/portal/sessions/0/2", nil), adminViewer)
	w := route(http.MethodGet, "/portal/sessions/{begin}/{end}", newOverviewHandler(svc).Sessions, r)

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Begin    int `json:"begin"`
		End      int `json:"end"`
		Sessions []struct {
			SessionID string `json:"session_id"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.End)
	require.Len(t, page.Sessions, 1)
	assert.Equal(t, "000000000000beef", page.Sessions[0].SessionID)
}

func TestOverviewHandler_Sessions_BadRange(t *testing.T) {
	for _, path := range []string{"/portal/sessions/abc/10", "/portal/sessions/0/ten", "/portal/sessions/-1/10", "/portal/sessions/0/99999999999"} {
		t.Run(path, func(t *testing.T) {
			svc := &MockOverviewService{}
			r := asViewer(httptest.NewRequest(http.MethodGet, path, nil), adminViewer)
			w := route(http.MethodGet, "/portal/sessions/{begin}/{end}", newOverviewHandler(svc).Sessions, r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "Recent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOverviewHandler_Sessions_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"forbidden", errors.Forbidden("only admins may list recent sessions"), http.StatusForbidden},
		{"inverted range", errors.InvalidParam("session range [5, 1) is invalid"), http.StatusBadRequest},
		{"store failure", errors.Wrap(assert.AnError, errors.ErrCodeCacheError, "failed to read session index"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockOverviewService{}
			svc.On("Recent", mock.Anything, memberViewer, 5, 1).Return(nil, tc.err)

			r := asViewer(httptest.NewRequest(http.MethodGet, "/portal/sessions/5/1", nil), memberViewer)
			w := route(http.MethodGet, "/portal/sessions/{begin}/{end}", newOverviewHandler(svc).Sessions, r)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
