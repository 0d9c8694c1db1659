package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/ledger"
	"storefront/backend/internal/money"
	"storefront/backend/internal/store"
	"storefront/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Logger         zerolog.Logger
	Guard          cache.SubmissionGuard
	IdempotencyTTL time.Duration
	// ShopWhatsApp is the number online orders are handed off to.
	ShopWhatsApp string
	Now          func() time.Time
}

type Service struct {
	repo           store.Repository
	broker         *store.Broker
	tracker        *ledger.Tracker
	guard          cache.SubmissionGuard
	validate       *validator.Validate
	log            zerolog.Logger
	now            func() time.Time
	idempotencyTTL time.Duration
	shopWhatsApp   string
	unsubscribe    func()

	warnMu         sync.Mutex
	loggedWarnings map[string]struct{}
}

// New wires the service to repo. When broker is nil the repository is wrapped
// so that its mutations still reach the register tracker.
func New(repo store.Repository, broker *store.Broker, opts Options) *Service {
	if broker == nil {
		broker = store.NewBroker()
		repo = store.Observe(repo, broker)
	}
	if opts.Guard == nil {
		opts.Guard = cache.NewMemorySubmissionGuard()
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		repo:           repo,
		broker:         broker,
		tracker:        ledger.NewTracker(),
		guard:          opts.Guard,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		log:            opts.Logger.With().Str("component", "service").Logger(),
		now:            opts.Now,
		idempotencyTTL: opts.IdempotencyTTL,
		shopWhatsApp:   opts.ShopWhatsApp,
	}
	s.unsubscribe = broker.Subscribe(store.CollectionCashEvents, s.onCashEventsChanged)
	return s
}

// Close stops following cash event changes.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Service) onCashEventsChanged() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.refreshRegister(ctx); err != nil {
		s.log.Error().Err(err).Msg("refresh register state")
	}
}

// refreshRegister recomputes the register from every stored cash event. The
// admission checks use it rather than the cached state so that writes from
// another process are seen.
func (s *Service) refreshRegister(ctx context.Context) (domain.RegisterState, error) {
	events, err := s.repo.ListCashEvents(ctx)
	if err != nil {
		return domain.RegisterState{}, err
	}
	state := s.tracker.Refresh(events)
	s.logNewWarnings(state.Warnings)
	return state, nil
}

// logNewWarnings logs each warning once, for as long as it keeps showing up
// in consecutive refreshes.
func (s *Service) logNewWarnings(warnings []domain.Warning) {
	current := make(map[string]struct{}, len(warnings))

	s.warnMu.Lock()
	defer s.warnMu.Unlock()
	for _, warning := range warnings {
		key := warning.Kind + "|" + warning.EventID + "|" + warning.Message
		current[key] = struct{}{}
		if _, logged := s.loggedWarnings[key]; logged {
			continue
		}
		s.log.Warn().
			Str("kind", warning.Kind).
			Str("event_id", warning.EventID).
			Msg(warning.Message)
	}
	s.loggedWarnings = current
}

func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// resolveAmount prefers the decimal string when both forms are sent.
func resolveAmount(cents int64, raw string) (int64, error) {
	if strings.TrimSpace(raw) != "" {
		return money.ParseCents(raw)
	}
	if err := money.CheckCents(cents); err != nil {
		return 0, err
	}
	return cents, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("write audit log")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, limit)
}
