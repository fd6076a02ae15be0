package user

import "context"

// ListFilter narrows List results.
type ListFilter struct {
	CompanyCode string
	Offset      int
	Limit       int
}

// Repository is the persistence contract for profiles.
type Repository interface {
	// GetBySubject returns errors.ErrCodeProfileNotFound when absent.
	GetBySubject(ctx context.Context, subject string) (*Profile, error)
	// Upsert inserts or replaces the profile keyed by subject.
	Upsert(ctx context.Context, p *Profile) error
	// SetCompany updates the company of an existing profile.
	SetCompany(ctx context.Context, subject, code, name string) error
	List(ctx context.Context, filter ListFilter) ([]*Profile, int64, error)
}
