// Command doctor checks a local setup: env files, required variables,
// Stripe keys, database connectivity and pending migrations.
package main

import (
	"context"
	"flag"
	"os"
	"time"
)

func main() {
	dir := flag.String("dir", ".", "directory holding .env.local or .env")
	timeout := flag.Duration("timeout", 15*time.Second, "database check timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	ok := newDoctor(os.Stdout).run(ctx, *dir)
	cancel()
	if !ok {
		os.Exit(1)
	}
}
