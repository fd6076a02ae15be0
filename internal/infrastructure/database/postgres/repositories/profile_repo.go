package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/networknext/portal/internal/domain/user"
	"github.com/networknext/portal/internal/infrastructure/database/postgres"
	"github.com/networknext/portal/internal/infrastructure/monitoring/logging"
	"github.com/networknext/portal/pkg/errors"
)

const (
	pgUniqueViolation = "23505"

	defaultListLimit = 50
	maxListLimit     = 500

	profileColumns = `id, subject, email, email_verified, company_code, company_name, roles, created_at, updated_at`
)

type postgresProfileRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresProfileRepo returns a user.Repository backed by the user_profiles table.
func NewPostgresProfileRepo(conn *postgres.Connection, log logging.Logger) user.Repository {
	return &postgresProfileRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

func (r *postgresProfileRepo) GetBySubject(ctx context.Context, subject string) (*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE subject = $1`
	p, err := scanProfile(r.executor.QueryRowContext(ctx, query, subject))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeProfileNotFound, "user profile not found").WithDetail("subject=" + subject)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get user profile")
	}
	return p, nil
}

func (r *postgresProfileRepo) Upsert(ctx context.Context, p *user.Profile) error {
	if p == nil || p.Subject == "" {
		return errors.InvalidParam("profile subject must not be empty")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO user_profiles (
			id, subject, email, email_verified, company_code, company_name, roles
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject) DO UPDATE SET
			email = EXCLUDED.email,
			email_verified = EXCLUDED.email_verified,
			company_code = EXCLUDED.company_code,
			company_name = EXCLUDED.company_name,
			roles = EXCLUDED.roles,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.executor.QueryRowContext(ctx, query,
		p.ID.String(), p.Subject, p.Email, p.EmailVerified, p.CompanyCode, p.CompanyName, joinRoles(p.Roles),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return errors.Wrap(err, errors.ErrCodeConflict, "user profile already exists")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert user profile")
	}
	r.log.Debug("user profile upserted", logging.String("subject", p.Subject))
	return nil
}

func (r *postgresProfileRepo) SetCompany(ctx context.Context, subject, code, name string) error {
	query := `UPDATE user_profiles SET company_code = $2, company_name = $3, updated_at = NOW() WHERE subject = $1`
	res, err := r.executor.ExecContext(ctx, query, subject, code, name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to set company")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to set company")
	}
	if n == 0 {
		return errors.New(errors.ErrCodeProfileNotFound, "user profile not found").WithDetail("subject=" + subject)
	}
	r.log.Info("user profile company set",
		logging.String("subject", subject),
		logging.String("company_code", code),
	)
	return nil
}

func (r *postgresProfileRepo) List(ctx context.Context, filter user.ListFilter) ([]*user.Profile, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where := ""
	args := []interface{}{}
	if filter.CompanyCode != "" {
		where = " WHERE company_code = $1"
		args = append(args, filter.CompanyCode)
	}

	var total int64
	if err := r.executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count user profiles")
	}

	query := `SELECT ` + profileColumns + ` FROM user_profiles` + where +
		` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	rows, err := r.executor.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list user profiles")
	}
	defer rows.Close()

	profiles := make([]*user.Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan user profile")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list user profiles")
	}
	return profiles, total, nil
}

func scanProfile(row scanner) (*user.Profile, error) {
	var (
		p         user.Profile
		roles     string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&p.ID, &p.Subject, &p.Email, &p.EmailVerified, &p.CompanyCode, &p.CompanyName,
		&roles, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Roles = splitRoles(roles)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return &p, nil
}

func joinRoles(roles []user.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func splitRoles(s string) []user.Role {
	if s == "" {
		return []user.Role{}
	}
	return user.ParseRoles(strings.Split(s, ","))
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
