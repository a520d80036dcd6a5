package pushsubscription

import "context"

type Repository interface {
	Save(ctx context.Context, s *Subscription) error
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
	FindByEndpoint(ctx context.Context, endpoint string) (*Subscription, error)
}
