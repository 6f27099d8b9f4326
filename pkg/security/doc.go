/*
Package security groups credential handling for the fortune proxy.

The proxy holds exactly one credential, the workflow API token, and it
must never appear in the repository, in responses or in logs. Package
secrets resolves it at call time from the environment or from mounted
secret files.

# Secret Management

Build a manager from configuration and hand a TokenSource to the
workflow client:

	manager, err := secrets.NewManagerFromConfig(cfg.Secrets, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	// upstream.token: ${secret:workflow-token}
	// resolved from FORTUNE_SECRET_WORKFLOW_TOKEN or <file_dir>/workflow-token
	creds := secrets.NewTokenSource(manager, cfg.Upstream.Token)

Rotating the token needs no restart: a watched file directory clears the
cache on change, and secrets.refresh_schedule refreshes every provider on
a cron schedule.

Inbound authentication and TLS termination are not handled here; the
proxy is deployed behind a fronting proxy that owns both.
*/
package security
