package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"github.com/networknext/portal/internal/application/overview"
	"github.com/networknext/portal/internal/application/profile"
	"github.com/networknext/portal/internal/application/usertool"
	"github.com/networknext/portal/internal/domain/session"
	"github.com/networknext/portal/internal/domain/user"
)

type MockUserToolService struct {
	mock.Mock
}

func (m *MockUserToolService) Lookup(ctx context.Context, viewer *user.Profile, raw string) (*usertool.Result, error) {
	args := m.Called(ctx, viewer, raw)
	res, _ := args.Get(0).(*usertool.Result)
	return res, args.Error(1)
}

func (m *MockUserToolService) GetSession(ctx context.Context, viewer *user.Profile, raw string) (*session.Entry, error) {
	args := m.Called(ctx, viewer, raw)
	e, _ := args.Get(0).(*session.Entry)
	return e, args.Error(1)
}

type MockOverviewService struct {
	mock.Mock
}

func (m *MockOverviewService) Counts(ctx context.Context, viewer *user.Profile) (*session.Counts, error) {
	args := m.Called(ctx, viewer)
	c, _ := args.Get(0).(*session.Counts)
	return c, args.Error(1)
}

func (m *MockOverviewService) Recent(ctx context.Context, viewer *user.Profile, begin, end int) (*overview.RecentPage, error) {
	args := m.Called(ctx, viewer, begin, end)
	p, _ := args.Get(0).(*overview.RecentPage)
	return p, args.Error(1)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Resolve(ctx context.Context, id *user.Identity) (*user.Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*user.Profile)
	return p, args.Error(1)
}

func (m *MockProfileService) SetCompany(ctx context.Context, subject, code, name string) (*user.Profile, error) {
	args := m.Called(ctx, subject, code, name)
	p, _ := args.Get(0).(*user.Profile)
	return p, args.Error(1)
}

func (m *MockProfileService) List(ctx context.Context, filter user.ListFilter) (*profile.ListResult, error) {
	args := m.Called(ctx, filter)
	res, _ := args.Get(0).(*profile.ListResult)
	return res, args.Error(1)
}

var (
	adminViewer  = &user.Profile{Subject: "auth0|admin", Email: "admin@networknext.com", EmailVerified: true, Roles: []user.Role{user.RoleAdmin}}
	memberViewer = &user.Profile{Subject: "auth0|member", Email: "dev@acme.com", EmailVerified: true, CompanyCode: "acme", CompanyName: "Acme"}
)

// asViewer places p on the request context the way the auth middleware does.
func asViewer(r *http.Request, p *user.Profile) *http.Request {
	ctx := r.Context()
	if p != nil {
		ctx = user.WithIdentity(ctx, &user.Identity{Subject: p.Subject, Email: p.Email, EmailVerified: p.EmailVerified, Roles: p.Roles})
		ctx = user.WithProfile(ctx, p)
	}
	return r.WithContext(ctx)
}

// route serves r through a chi router so URL parameters resolve.
func route(method, pattern string, h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	mux := chi.NewRouter()
	mux.Method(method, pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}
