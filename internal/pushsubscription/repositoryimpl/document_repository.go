// Package repositoryimpl keeps every push subscription in one YAML document
// next to the broker's other stores.
package repositoryimpl

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/keeperd/internal/blobrepo"
	"github.com/kazz187/keeperd/internal/pushsubscription"
	"github.com/kazz187/keeperd/pkg/cerr"
	"github.com/kazz187/keeperd/pkg/storage"
)

const (
	documentPath = "push/subscriptions.yaml"
	target       = "push subscriptions"

	// DefaultMaxSubscriptions bounds the approval UIs notified per prompt.
	DefaultMaxSubscriptions = 16
)

type document struct {
	Subscriptions []*pushsubscription.Subscription `yaml:"subscriptions"`
}

// DocumentRepository stores subscriptions oldest first. Saving beyond the
// limit drops the oldest ones.
type DocumentRepository struct {
	blob  *blobrepo.Repository
	limit int

	mu sync.Mutex
}

type Option func(*DocumentRepository)

func WithMaxSubscriptions(n int) Option {
	return func(r *DocumentRepository) { r.limit = n }
}

func NewDocumentRepository(s storage.Storage, opts ...Option) *DocumentRepository {
	r := &DocumentRepository{
		blob:  blobrepo.New(s, documentPath, target),
		limit: DefaultMaxSubscriptions,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DocumentRepository) load(ctx context.Context) (*document, error) {
	raw, ok, err := r.blob.Get(ctx)
	if err != nil || !ok {
		return &document{}, err
	}
	var doc document
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, cerr.WrapDecodeError(target, err)
	}
	return &doc, nil
}

func (r *DocumentRepository) store(ctx context.Context, doc *document) error {
	if len(doc.Subscriptions) == 0 {
		return r.blob.Clear(ctx)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal push subscriptions: %w", err))
	}
	return r.blob.Set(ctx, string(data))
}

// Save inserts s or replaces the subscription with the same ID.
func (r *DocumentRepository) Save(ctx context.Context, s *pushsubscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(doc.Subscriptions, func(e *pushsubscription.Subscription) bool { return e.ID == s.ID })
	if i >= 0 {
		doc.Subscriptions[i] = s
	} else {
		doc.Subscriptions = append(doc.Subscriptions, s)
	}
	slices.SortStableFunc(doc.Subscriptions, func(a, b *pushsubscription.Subscription) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if over := len(doc.Subscriptions) - r.limit; r.limit > 0 && over > 0 {
		for _, old := range doc.Subscriptions[:over] {
			slog.InfoContext(ctx, "dropping oldest push subscription", "id", old.ID)
		}
		doc.Subscriptions = slices.Clone(doc.Subscriptions[over:])
	}
	return r.store(ctx, doc)
}

func (r *DocumentRepository) List(ctx context.Context) ([]*pushsubscription.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Subscriptions, nil
}

// Delete removes the subscription with id. Push services report expired
// endpoints more than once, so a missing id is not an error.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	n := len(doc.Subscriptions)
	doc.Subscriptions = slices.DeleteFunc(doc.Subscriptions, func(e *pushsubscription.Subscription) bool { return e.ID == id })
	if len(doc.Subscriptions) == n {
		return nil
	}
	return r.store(ctx, doc)
}

func (r *DocumentRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(all, func(e *pushsubscription.Subscription) bool { return e.Endpoint == endpoint })
	if i < 0 {
		return nil, pushsubscription.ErrNotFound
	}
	return all[i], nil
}
