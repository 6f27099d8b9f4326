// Package health serves the proxy's liveness, readiness and version
// endpoints.
//
//   - /health answers 200 while the process is running.
//   - /ready runs every registered check and answers 503 if any fails.
//   - /version reports build information.
//
// Checks run concurrently, each under its own timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("credentials", func(ctx context.Context) error {
//	    _, err := creds.Token(ctx)
//	    return err
//	})
package health
