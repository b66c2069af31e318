package branches

import (
	"context"
	"fmt"
	"strings"

	"github.com/toursync/toursync-admin/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every branch ordered by name.
func (s *Service) List(ctx context.Context) ([]Option, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, fmt.Errorf("%w: invalid branch ID", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Names renders the names of the given branches as a comma separated list,
// ordered by name. Unknown ids are skipped.
func (s *Service) Names(ctx context.Context, ids ...int64) (string, error) {
	opts, err := s.repo.NamesByIDs(ctx, ids)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return strings.Join(names, ", "), nil
}
