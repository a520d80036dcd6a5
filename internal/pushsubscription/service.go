package pushsubscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/keeperd/pkg/cerr"
)

var (
	ErrEndpointRequired = cerr.Sentinel(cerr.InvalidArgument, "endpoint is required")
	ErrKeysRequired     = cerr.Sentinel(cerr.InvalidArgument, "p256dh and auth keys are required")
	ErrNotFound         = cerr.Sentinel(cerr.NotFound, "push subscription not found")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a subscription. Registering a known endpoint again
// replaces its keys and keeps its ID.
func (s *Service) Register(ctx context.Context, endpoint, p256dh, auth string) (*Subscription, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if p256dh == "" || auth == "" {
		return nil, ErrKeysRequired
	}

	sub, err := s.repo.FindByEndpoint(ctx, endpoint)
	switch {
	case errors.Is(err, ErrNotFound):
		sub = &Subscription{
			ID:        ulid.Make().String(),
			Endpoint:  endpoint,
			CreatedAt: time.Now(),
		}
	case err != nil:
		return nil, err
	}
	sub.P256dhKey = p256dh
	sub.AuthKey = auth
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "push subscription registered", "id", sub.ID)
	return sub, nil
}

func (s *Service) Unregister(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return ErrEndpointRequired
	}
	sub, err := s.repo.FindByEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, sub.ID)
}
