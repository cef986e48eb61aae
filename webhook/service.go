package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

/* Service is the webhook store: the in-memory collection is authoritative and every
 * mutation rewrites the whole collection to the Repository under a single key
 * Uses pointer semantics as it's an API, not data
 */

// DefaultStoreKey is the key the collection is stored under
const DefaultStoreKey = "chat:webhooks"

// ErrNotFound is returned when no webhook has the requested id
var ErrNotFound = errors.New("webhook not found")

// UseCase defines the business operations for webhook management
//
//go:generate go tool mockery --name UseCase --output ./mocks
type UseCase interface {
	List(ctx context.Context) []Webhook
	Get(ctx context.Context, id string) (Webhook, error)
	Active(ctx context.Context) []Webhook
	Add(ctx context.Context, in Input) (string, error)
	Update(ctx context.Context, id string, in Input) (Webhook, error)
	Delete(ctx context.Context, id string) error
	ToggleActive(ctx context.Context, id string) (Webhook, error)
	RecordOutcome(ctx context.Context, id string, outcome Outcome) error
	ResetStats(ctx context.Context, id string) (Webhook, error)
}

type Service struct {
	Repo Repository

	key    string
	policy Policy
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes mutations; every writer holds it across merge and flush
	mu       sync.RWMutex
	webhooks []Webhook
}

// Option configures a Service
type Option func(*Service)

// WithKey overrides the key the collection is stored under
func WithKey(key string) Option {
	return func(s *Service) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithPolicy sets the delivery defaults for new webhooks; out of range values are clamped
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p.clamp()
	}
}

// WithLogger sets the logger used to report persistence failures
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new webhook service with dependency injection
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		Repo:   repo,
		key:    DefaultStoreKey,
		policy: DefaultPolicy(),
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collection with the stored one
// Missing or malformed data yields an empty collection
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks = nil
	raw, found, err := s.Repo.Get(ctx, s.key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", s.key).Msg("loading webhooks, continuing in memory")
		return
	}
	if !found || strings.TrimSpace(raw) == "" {
		return
	}

	var stored []Webhook
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("stored webhooks are malformed, starting empty")
		return
	}
	s.webhooks = stored
	s.logger.Info().Int("count", len(stored)).Msg("webhooks loaded")
}

// List returns all webhooks in insertion order
func (s *Service) List(ctx context.Context) []Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Webhook, 0, len(s.webhooks))
	for _, wh := range s.webhooks {
		all = append(all, wh.clone())
	}
	return all
}

// Get returns a webhook by id
func (s *Service) Get(ctx context.Context, id string) (Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Webhook{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.webhooks[i].clone(), nil
}

// Active returns a snapshot of the webhooks that take part in triggers
func (s *Service) Active(ctx context.Context) []Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []Webhook
	for _, wh := range s.webhooks {
		if wh.Active {
			active = append(active, wh.clone())
		}
	}
	return active
}

// Add validates the input, assigns id and timestamps, and persists the new webhook
func (s *Service) Add(ctx context.Context, in Input) (string, error) {
	if err := in.validate(true); err != nil {
		return "", err
	}

	now := s.now()
	wh := Webhook{
		ID:           uuid.New().String(),
		Method:       POST,
		BodyTemplate: DefaultBodyTemplate,
		Active:       true,
		TimeoutMS:    s.policy.TimeoutMS,
		Retries:      s.policy.Retries,
		RetryDelayMS: s.policy.RetryDelayMS,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	in.apply(&wh)
	wh.Headers = wh.Headers.withDefaults()
	if wh.Name == "" {
		wh.Name = nameFromURL(wh.URL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks = append(s.webhooks, wh)
	s.persist(ctx)
	return wh.ID, nil
}

// Update re-validates the supplied fields and merges them into the webhook
func (s *Service) Update(ctx context.Context, id string, in Input) (Webhook, error) {
	if err := in.validate(false); err != nil {
		return Webhook{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Webhook{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	old := s.webhooks[i]
	wh := old.clone()
	in.apply(&wh)
	if in.Headers != nil {
		wh.Headers = wh.Headers.withDefaults()
	}
	// a name derived from the old host follows the new URL
	if in.Name == nil && in.URL != nil && old.Name == nameFromURL(old.URL) {
		wh.Name = nameFromURL(wh.URL)
	}
	if wh.Name == "" {
		wh.Name = nameFromURL(wh.URL)
	}
	wh.UpdatedAt = s.now()

	s.webhooks[i] = wh
	s.persist(ctx)
	return wh.clone(), nil
}

// Delete removes a webhook
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.webhooks = append(s.webhooks[:i:i], s.webhooks[i+1:]...)
	s.persist(ctx)
	return nil
}

// ToggleActive flips the active flag
func (s *Service) ToggleActive(ctx context.Context, id string) (Webhook, error) {
	return s.mutate(ctx, id, func(wh *Webhook) {
		wh.Active = !wh.Active
	})
}

// RecordOutcome folds one completed delivery sequence into the statistics
func (s *Service) RecordOutcome(ctx context.Context, id string, outcome Outcome) error {
	_, err := s.mutate(ctx, id, func(wh *Webhook) {
		if outcome.Success {
			wh.SuccessCount++
		} else {
			wh.FailureCount++
		}
		at := outcome.At
		if at.IsZero() {
			at = s.now()
		}
		wh.LastTriggeredAt = &at
		wh.LastStatus = outcome.Status
		wh.LastError = outcome.Error
		wh.LastDurationMS = outcome.Duration.Milliseconds()
	})
	return err
}

// ResetStats clears counters and diagnostics
func (s *Service) ResetStats(ctx context.Context, id string) (Webhook, error) {
	return s.mutate(ctx, id, func(wh *Webhook) {
		wh.SuccessCount = 0
		wh.FailureCount = 0
		wh.LastTriggeredAt = nil
		wh.LastStatus = 0
		wh.LastError = ""
		wh.LastDurationMS = 0
	})
}

// mutate applies fn to the webhook under the write lock and flushes the collection
func (s *Service) mutate(ctx context.Context, id string, fn func(wh *Webhook)) (Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Webhook{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&s.webhooks[i])
	s.webhooks[i].UpdatedAt = s.now()
	s.persist(ctx)
	return s.webhooks[i].clone(), nil
}

// persist writes the whole collection; callers hold the write lock
// A failed write is logged and the in-memory collection stays authoritative
func (s *Service) persist(ctx context.Context) {
	data, err := json.Marshal(s.webhooks)
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding webhooks")
		return
	}
	if err := s.Repo.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error().Err(err).Str("key", s.key).Msg("persisting webhooks, continuing in memory")
	}
}

func (s *Service) indexOf(id string) int {
	for i, wh := range s.webhooks {
		if wh.ID == id {
			return i
		}
	}
	return -1
}

// apply copies supplied fields onto wh
func (in Input) apply(wh *Webhook) {
	if in.Name != nil {
		wh.Name = strings.TrimSpace(*in.Name)
	}
	if in.URL != nil {
		wh.URL = strings.TrimSpace(*in.URL)
	}
	if in.Method != nil {
		wh.Method = NewMethod(*in.Method)
	}
	if in.Headers != nil {
		wh.Headers = in.Headers.Clone()
	}
	if in.BodyTemplate != nil {
		wh.BodyTemplate = *in.BodyTemplate
	}
	if in.Active != nil {
		wh.Active = *in.Active
	}
	if in.TimeoutMS != nil {
		wh.TimeoutMS = *in.TimeoutMS
	}
	if in.Retries != nil {
		wh.Retries = *in.Retries
	}
	if in.RetryDelayMS != nil {
		wh.RetryDelayMS = *in.RetryDelayMS
	}
	if in.SigningSecret != nil {
		wh.SigningSecret = strings.TrimSpace(*in.SigningSecret)
	}
}
