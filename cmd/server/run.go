package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tiergate/db"
	"github.com/dmitrymomot/tiergate/modules/api"
	"github.com/dmitrymomot/tiergate/pkg/audit"
	"github.com/dmitrymomot/tiergate/pkg/clientip"
	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/email"
	"github.com/dmitrymomot/tiergate/pkg/environment"
	"github.com/dmitrymomot/tiergate/pkg/httpserver"
	"github.com/dmitrymomot/tiergate/pkg/jwt"
	"github.com/dmitrymomot/tiergate/pkg/logger"
	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/pkg/ratelimiter"
	"github.com/dmitrymomot/tiergate/pkg/redis"
	"github.com/dmitrymomot/tiergate/pkg/requestid"
	"github.com/dmitrymomot/tiergate/svc/access"
	"github.com/dmitrymomot/tiergate/svc/auth"
	"github.com/dmitrymomot/tiergate/svc/billing"
	"github.com/dmitrymomot/tiergate/svc/subscription"
	"github.com/dmitrymomot/tiergate/svc/webhook"
)

// stores groups the persistence backends: Postgres when DATABASE_URL is
// set, in-memory otherwise.
type stores struct {
	subscriptions subscription.Repository
	ledger        webhook.Ledger
	users         auth.UserStore
	audit         audit.Storage
}

func memoryStores() stores {
	return stores{
		subscriptions: subscription.NewMemoryRepository(),
		ledger:        webhook.NewMemoryLedger(),
		users:         auth.NewMemoryUserStore(),
		audit:         audit.NewMemoryStorage(0),
	}
}

func pgStores(pool *pgxpool.Pool) stores {
	return stores{
		subscriptions: subscription.NewPgRepository(pool),
		ledger:        webhook.NewPgLedger(pool),
		users:         auth.NewPgUserStore(pool),
		audit:         audit.NewPgStorage(pool),
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	env := cfg.environment()

	var (
		authCfg    auth.Config
		billingCfg billing.Config
		emailCfg   email.Config
		redisCfg   redis.Config
		httpCfg    httpserver.Config
	)
	if err := errors.Join(
		config.Load(&authCfg),
		config.Load(&billingCfg),
		config.Load(&emailCfg),
		config.Load(&redisCfg),
		config.Load(&httpCfg),
	); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	var (
		st     = memoryStores()
		checks []httpserver.Check
		setup  = api.SetupStatus{Email: emailCfg.PostmarkEnabled()}
	)

	if cfg.DatabaseURL != "" {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return fmt.Errorf("load database configuration: %w", err)
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := pg.Migrate(ctx, pool, db.Migrations(), pgCfg, log); err != nil {
			return err
		}
		st = pgStores(pool)
		setup.Database = true
		checks = append(checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})
	} else {
		log.WarnContext(ctx, "DATABASE_URL is not set, using in-memory storage")
	}

	var (
		locker     subscription.Locker = subscription.NewKeyedMutex()
		limitStore ratelimiter.Store
	)
	if redisCfg.Enabled() {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()

		locker = subscription.NewRedisLocker(client, 0, subscription.WithLockLogger(log))
		limitStore = ratelimiter.NewRedisStore(client)
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
	} else {
		memStore := ratelimiter.NewMemoryStore()
		defer memStore.Close()
		limitStore = memStore
	}

	limiter, err := ratelimiter.NewBucket(limitStore, ratelimiter.PerWindow(cfg.RegisterRateLimit, cfg.RegisterRateWindow))
	if err != nil {
		return fmt.Errorf("register rate limit: %w", err)
	}

	tokens, err := jwt.NewFromString(authCfg.Secret)
	if err != nil {
		return err
	}
	mailer, err := email.New(emailCfg, log)
	if err != nil {
		return err
	}

	devBearer := !env.IsProduction() && authCfg.AllowDevBearer
	if devBearer {
		log.WarnContext(ctx, "dev bearer shortcut is enabled")
	}
	resolver := auth.NewResolver(tokens,
		auth.WithCookieName(authCfg.SessionCookieName),
		auth.WithDevBearer(devBearer),
		auth.WithResolverLogger(log),
	)

	auditLog := audit.NewLogger(st.audit,
		audit.WithRequestIDExtractor(requestid.Lookup),
		audit.WithIPExtractor(clientip.Lookup),
		audit.WithLogger(log),
	)

	parser := webhookParser(ctx, env, billingCfg, log)
	if !billingCfg.IsStripeConfigured() {
		log.WarnContext(ctx, "stripe is not configured, billing routes answer 503")
	}

	server := api.NewServer(api.Dependencies{
		Env:    env,
		Logger: log,
		Aggregator: access.NewAggregator(st.subscriptions, resolver,
			access.WithHeaderOverrides(cfg.headerOverrides()),
			access.WithLogger(log),
		),
		Resolver: resolver,
		Accounts: auth.NewService(st.users, tokens,
			auth.WithMailer(mailer),
			auth.WithServiceLogger(log),
			auth.WithSessionTTL(authCfg.SessionTTL),
			auth.WithAppName(cfg.Name),
		),
		Subscriptions: st.subscriptions,
		Billing:       billing.New(env, billingCfg, cfg.SiteURL, log),
		BillingConfig: billingCfg,
		WebhookParser: parser,
		Webhooks: webhook.NewProcessor(st.subscriptions, st.ledger,
			webhook.WithLocker(locker),
			webhook.WithAuditor(auditLog),
			webhook.WithLogger(log),
		),
		Audit:           auditLog,
		RegisterLimiter: limiter,
		CookieName:      authCfg.SessionCookieName,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		ReadyChecks:     checks,
		Setup:           setup,
		FeatureTier:     cfg.featureTier(),
	})

	log.InfoContext(ctx, "starting server",
		logger.Component("server"),
		"env", env.String(),
		"database", setup.Database,
		"redis", redisCfg.Enabled(),
	)
	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log)).Run(ctx, server.Router())
}

// webhookParser verifies signatures in production and trusts payloads
// elsewhere.
func webhookParser(ctx context.Context, env environment.Environment, cfg billing.Config, log *slog.Logger) webhook.Parser {
	if !env.IsProduction() {
		return webhook.NewDevParser()
	}
	if !billing.IsRealValue(cfg.WebhookSecret) {
		log.ErrorContext(ctx, "STRIPE_WEBHOOK_SECRET is not set, every webhook delivery will be rejected with 400")
	}
	return webhook.NewStripeParser(cfg.WebhookSecret)
}
