package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/tiergate/db"
	"github.com/dmitrymomot/tiergate/pkg/config"
	"github.com/dmitrymomot/tiergate/pkg/environment"
	"github.com/dmitrymomot/tiergate/pkg/pg"
	"github.com/dmitrymomot/tiergate/svc/billing"
)

var errNoEnvFile = errors.New("no .env.local or .env file found")

// requiredVars are the variables the server refuses to start without.
type requiredVars struct {
	SiteURL     string `env:"SITE_URL,required"`
	AuthSecret  string `env:"AUTH_SECRET,required"`
	DatabaseURL string `env:"DATABASE_URL"`
	Env         string `env:"APP_ENV" envDefault:"development"`
}

type doctor struct {
	out    io.Writer
	failed bool
}

func newDoctor(out io.Writer) *doctor {
	return &doctor{out: out}
}

func (d *doctor) section(title string) { fmt.Fprintf(d.out, "\n%s\n", title) }
func (d *doctor) pass(format string, args ...any) {
	fmt.Fprintf(d.out, "  [ok]   "+format+"\n", args...)
}
func (d *doctor) info(format string, args ...any) {
	fmt.Fprintf(d.out, "  [info] "+format+"\n", args...)
}
func (d *doctor) fail(format string, args ...any) {
	d.failed = true
	fmt.Fprintf(d.out, "  [fail] "+format+"\n", args...)
}

// run executes every check and reports whether all of them passed.
func (d *doctor) run(ctx context.Context, dir string) bool {
	d.section("Environment files")
	if path, err := findEnvFile(dir); err != nil {
		d.fail("%v; copy .env.example to .env.local", err)
	} else if err := config.LoadEnv(path); err != nil {
		d.fail("%s: %v", filepath.Base(path), err)
	} else {
		d.pass("%s loaded", filepath.Base(path))
	}

	d.section("Environment variables")
	var vars requiredVars
	if err := config.Load(&vars); err != nil {
		d.fail("validation failed: %v", err)
	} else {
		d.pass("required variables are set")
	}

	var billingCfg billing.Config
	if err := config.Load(&billingCfg); err != nil {
		d.fail("billing configuration: %v", err)
	} else if billingCfg.IsStripeConfigured() {
		d.pass("Stripe is configured")
	} else {
		d.info("Stripe is not configured, billing is disabled")
	}

	d.section("Database")
	switch {
	case vars.DatabaseURL == "" && environment.Parse(vars.Env).IsProduction():
		d.fail("DATABASE_URL is required in production")
	case vars.DatabaseURL == "":
		d.info("DATABASE_URL is not set, the server will use in-memory storage")
	default:
		d.checkDatabase(ctx)
	}

	fmt.Fprintln(d.out, "\nDone.")
	return !d.failed
}

func (d *doctor) checkDatabase(ctx context.Context) {
	var cfg pg.Config
	if err := config.Load(&cfg); err != nil {
		d.fail("database configuration: %v", err)
		return
	}
	cfg.RetryAttempts = 1

	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		d.fail("connection failed: %v", err)
		return
	}
	defer pool.Close()

	var now time.Time
	if err := pool.QueryRow(ctx, "SELECT now()").Scan(&now); err != nil {
		d.fail("query failed: %v", err)
		return
	}
	d.pass("connected, server time %s", now.UTC().Format(time.RFC3339))

	version, pending, err := pg.MigrationStatus(ctx, pool, db.Migrations(), cfg)
	switch {
	case err != nil:
		d.fail("migration status: %v", err)
	case pending > 0:
		d.info("schema version %d, %d migration(s) pending (applied on server start)", version, pending)
	default:
		d.pass("schema is up to date (version %d)", version)
	}
}

// findEnvFile prefers .env.local over .env.
func findEnvFile(dir string) (string, error) {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errNoEnvFile
}
