package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/suite"

	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/database/postgres"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/networknext/portal/pkg/errors"
)

var profileRowColumns = []string{
	"id", "subject", "email", "email_verified", "company_code", "company_name", "roles", "created_at", "updated_at",
}

type ProfileRepoTestSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	db   *sql.DB
	repo user.Repository
}

func (s *ProfileRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	logger := logging.NewNopLogger()
	s.repo = NewPostgresProfileRepo(postgres.NewConnectionWithDB(s.db, logger), logger)
}

func (s *ProfileRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *ProfileRepoTestSuite) TestGetBySubject_Found() {
	id := uuid.New()
	now := time.Now()
	s.mock.ExpectQuery(`SELECT id, subject, .* FROM user_profiles WHERE subject = \$1`).
		WithArgs("auth0|abc").
		WillReturnRows(sqlmock.NewRows(profileRowColumns).AddRow(
			id.String(), "auth0|abc", "dev@studio.com", true, "studio", "Studio", "admin,owner", now, now,
		))

	p, err := s.repo.GetBySubject(context.Background(), "auth0|abc")
	s.Require().NoError(err)
	s.Equal(id, p.ID)
	s.Equal("studio", p.CompanyCode)
	s.Equal("Studio", p.CompanyName)
	s.Equal([]user.Role{user.RoleAdmin, user.RoleOwner}, p.Roles)
	s.True(p.EmailVerified)
}

func (s *ProfileRepoTestSuite) TestGetBySubject_NotFound() {
	s.mock.ExpectQuery(`FROM user_profiles WHERE subject = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	p, err := s.repo.GetBySubject(context.Background(), "missing")
	s.Nil(p)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeProfileNotFound))
	s.True(pkgerrors.IsNotFound(err))
}

func (s *ProfileRepoTestSuite) TestGetBySubject_DatabaseError() {
	s.mock.ExpectQuery(`FROM user_profiles`).WillReturnError(errors.New("conn reset"))

	_, err := s.repo.GetBySubject(context.Background(), "auth0|abc")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *ProfileRepoTestSuite) TestUpsert_AssignsIDAndTimestamps() {
	p := &user.Profile{Subject: "auth0|new", Email: "new@studio.com", Roles: []user.Role{user.RoleExplorer}}
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	s.mock.ExpectQuery(`INSERT INTO user_profiles .* ON CONFLICT \(subject\) DO UPDATE`).
		WithArgs(sqlmock.AnyArg(), "auth0|new", "new@studio.com", false, "", "", "explorer").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("6ba7b810-9dad-11d1-80b4-00c04fd430c8", created, created))

	s.Require().NoError(s.repo.Upsert(context.Background(), p))
	s.Equal("6ba7b810-9dad-11d1-80b4-00c04fd430c8", p.ID.String())
	s.Equal(created, p.CreatedAt)
}

func (s *ProfileRepoTestSuite) TestUpsert_UniqueViolation() {
	s.mock.ExpectQuery(`INSERT INTO user_profiles`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "user_profiles_pkey"})

	err := s.repo.Upsert(context.Background(), &user.Profile{Subject: "auth0|dup"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))
}

func (s *ProfileRepoTestSuite) TestUpsert_RejectsEmptySubject() {
	err := s.repo.Upsert(context.Background(), &user.Profile{})
	s.True(pkgerrors.IsCode(err, pkgerrors.CodeInvalidParam))
}

func (s *ProfileRepoTestSuite) TestSetCompany() {
	s.mock.ExpectExec(`UPDATE user_profiles SET company_code = \$2, company_name = \$3`).
		WithArgs("auth0|abc", "studio", "Studio").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.SetCompany(context.Background(), "auth0|abc", "studio", "Studio"))
}

func (s *ProfileRepoTestSuite) TestSetCompany_NotFound() {
	s.mock.ExpectExec(`UPDATE user_profiles`).
		WithArgs("ghost", "studio", "Studio").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.repo.SetCompany(context.Background(), "ghost", "studio", "Studio")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeProfileNotFound))
}

func (s *ProfileRepoTestSuite) TestList_FilterByCompany() {
	now := time.Now()
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_profiles WHERE company_code = \$1`).
		WithArgs("studio").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	s.mock.ExpectQuery(`FROM user_profiles WHERE company_code = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("studio", 50, 0).
		WillReturnRows(sqlmock.NewRows(profileRowColumns).
			AddRow(uuid.NewString(), "a", "a@studio.com", true, "studio", "Studio", "", now, now).
			AddRow(uuid.NewString(), "b", "b@studio.com", true, "studio", "Studio", "owner", now, now))

	profiles, total, err := s.repo.List(context.Background(), user.ListFilter{CompanyCode: "studio"})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Require().Len(profiles, 2)
	s.Empty(profiles[0].Roles)
	s.Equal([]user.Role{user.RoleOwner}, profiles[1].Roles)
}

func (s *ProfileRepoTestSuite) TestList_ClampsLimit() {
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM user_profiles$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	s.mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(500, 0).
		WillReturnRows(sqlmock.NewRows(profileRowColumns))

	profiles, total, err := s.repo.List(context.Background(), user.ListFilter{Limit: 10000, Offset: -3})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(profiles)
}

func TestProfileRepoTestSuite(t *testing.T) {
	suite.Run(t, new(ProfileRepoTestSuite))
}
