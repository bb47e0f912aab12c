package users

import (
	"context"

	"github.com/castboard/castboard/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertPrincipal records the profile of an authenticated caller.
// A nil principal or one without subject is ignored.
func (s *Service) UpsertPrincipal(ctx context.Context, p *models.Principal) (*models.User, error) {
	if p == nil || p.Sub == "" {
		return nil, nil
	}
	return s.repo.UpsertBySub(ctx, p.User())
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	return s.UpsertPrincipal(ctx, models.PrincipalFromClaims(claims))
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}
