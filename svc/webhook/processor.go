package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/svc/subscription"
)

// Auditor records audit events without failing the caller.
type Auditor interface {
	Record(ctx context.Context, action string, opts ...audit.EventOption)
}

// Result is the acknowledgement returned to the sender.
type Result struct {
	OK      bool   `json:"ok"`
	Type    string `json:"type"`
	Ignored bool   `json:"ignored,omitempty"`
}

// Processor applies events to the subscription repository.
type Processor struct {
	repo   subscription.Repository
	ledger Ledger
	locker subscription.Locker
	audit  Auditor
	log    *slog.Logger
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLocker replaces the in-process per-user lock.
func WithLocker(l subscription.Locker) Option {
	return func(p *Processor) {
		if l != nil {
			p.locker = l
		}
	}
}

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(p *Processor) {
		if a != nil {
			p.audit = a
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, string, ...audit.EventOption) {}

// NewProcessor creates a Processor.
func NewProcessor(repo subscription.Repository, ledger Ledger, opts ...Option) *Processor {
	p := &Processor{
		repo:   repo,
		ledger: ledger,
		locker: subscription.NewKeyedMutex(),
		audit:  noopAuditor{},
		log:    logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one verified event. Duplicates and unknown types are
// acknowledged; only ledger and repository failures return an error, and
// in that case the ledger is left untouched so the sender retries.
func (p *Processor) Process(ctx context.Context, ev *Event) (Result, error) {
	log := p.log.With(logger.EventID(ev.ID), logger.EventType(ev.Type))

	// Deliveries of one event id run one at a time, so the ledger check,
	// the mutation and the ledger insert act as a unit.
	unlock, err := p.locker.Lock(ctx, eventLockKey(ev.ID))
	if err != nil {
		return Result{}, errors.Join(ErrLedger, err)
	}
	defer unlock()

	seen, err := p.ledger.Seen(ctx, ev.ID)
	if err != nil {
		return Result{}, err
	}
	actor := ev.Actor()
	if seen {
		if _, err := p.ledger.Record(ctx, ev.ID, ev.Type, actor); err != nil {
			log.WarnContext(ctx, "failed to flag duplicate delivery", logger.Error(err))
		}
		p.duplicate(ctx, ev)
		return Result{OK: true, Type: ev.Type, Ignored: true}, nil
	}

	res, err := p.dispatch(ctx, ev, actor, log)
	if err != nil {
		log.ErrorContext(ctx, "webhook mutation failed", logger.UserID(actor), logger.Error(err))
		return Result{}, err
	}

	duplicate, err := p.ledger.Record(ctx, ev.ID, ev.Type, actor)
	if err != nil {
		return Result{}, err
	}
	if duplicate {
		// Another instance without a shared lock recorded the id first.
		p.duplicate(ctx, ev)
		return Result{OK: true, Type: ev.Type, Ignored: true}, nil
	}
	return res, nil
}

func eventLockKey(id string) string {
	return "webhook:" + id
}

func (p *Processor) duplicate(ctx context.Context, ev *Event) {
	p.audit.Record(ctx, "webhook.duplicate",
		audit.WithDetail("eventId", ev.ID),
		audit.WithDetail("type", ev.Type),
	)
}

func (p *Processor) dispatch(ctx context.Context, ev *Event, actor string, log *slog.Logger) (Result, error) {
	switch ev.Type {
	case TypeSubscriptionCreated, TypeSubscriptionUpdated, TypeSubscriptionDeleted:
		log.InfoContext(ctx, "subscription event", logger.UserID(actor))
		if actor == "" {
			p.audit.Record(ctx, "subscription.webhook.missingUser",
				audit.WithDetail("eventType", ev.Type),
				audit.WithDetail("eventId", ev.ID),
				audit.Failed(),
			)
		} else if err := p.applySubscription(ctx, ev, actor); err != nil {
			return Result{}, err
		}
		opts := []audit.EventOption{
			audit.WithDetail("eventType", ev.Type),
			audit.WithDetail("eventId", ev.ID),
		}
		if actor != "" {
			opts = append(opts, audit.WithActor(actor))
		}
		p.audit.Record(ctx, "subscription.webhook", opts...)
		return Result{OK: true, Type: ev.Type}, nil

	case TypeCheckoutCompleted:
		log.InfoContext(ctx, "checkout completed")
		opts := []audit.EventOption{audit.WithDetail("eventId", ev.ID)}
		if actor != "" {
			opts = append(opts, audit.WithActor(actor))
		}
		p.audit.Record(ctx, "checkout.completed", opts...)
		return Result{OK: true, Type: ev.Type}, nil

	default:
		log.DebugContext(ctx, "webhook unhandled")
		p.audit.Record(ctx, "webhook.unhandled",
			audit.WithDetail("eventType", ev.Type),
			audit.WithDetail("eventId", ev.ID),
		)
		return Result{OK: true, Type: ev.Type, Ignored: true}, nil
	}
}

func (p *Processor) applySubscription(ctx context.Context, ev *Event, actor string) error {
	unlock, err := p.locker.Lock(ctx, actor)
	if err != nil {
		return errors.Join(ErrMutation, err)
	}
	defer unlock()

	if ev.Type == TypeSubscriptionDeleted {
		now := p.now().UTC()
		if err := p.repo.ScheduleCancellation(ctx, actor, now); err != nil {
			return errors.Join(ErrMutation, err)
		}
		if _, err := p.repo.ApplyCancellationIfDue(ctx, actor, now); err != nil {
			return errors.Join(ErrMutation, err)
		}
		p.audit.Record(ctx, "subscription.canceled",
			audit.WithActor(actor),
			audit.WithDetail("eventId", ev.ID),
		)
		return nil
	}

	if _, err := p.repo.UpgradeToPremium(ctx, actor); err != nil {
		return errors.Join(ErrMutation, err)
	}
	if customerID := ev.CustomerID(); customerID != "" {
		if err := p.repo.AttachCustomer(ctx, actor, customerID); err != nil {
			return errors.Join(ErrMutation, err)
		}
	}
	p.audit.Record(ctx, "subscription.activated",
		audit.WithActor(actor),
		audit.WithDetail("eventId", ev.ID),
		audit.WithDetail("type", ev.Type),
	)
	return nil
}
