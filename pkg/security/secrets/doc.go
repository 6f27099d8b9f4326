/*
Package secrets resolves credentials such as the workflow access token.

Secrets come from a chain of providers: the environment first, then an
optional directory with one file per secret (the layout of a Kubernetes
secret mount). Resolved values are cached for a TTL.

# References

Configuration values may embed ${secret:name}:

	upstream:
	  token: ${secret:workflow-token}

With the default prefix, "workflow-token" is read from the
FORTUNE_SECRET_WORKFLOW_TOKEN environment variable, or from the file
<file_dir>/workflow-token.

# Rotation

A TokenSource resolves its reference on every call, so a rotated value
is used by the next upstream attempt once the cache entry expires. File
providers can watch their directory with fsnotify, and a Refresher can
flush every provider on a cron schedule.
*/
package secrets
