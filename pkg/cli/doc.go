/*
Package cli provides command-line helpers for the fortuneproxy command.

It includes output formatters, a wait reporter for slow workflow calls,
typed command errors with exit codes, and signal handling.

Output Formatting:

Results are printed as text or JSON:

	formatter, err := cli.NewFormatter(cli.FormatJSON)
	if err != nil {
		return err
	}
	if err := formatter.FormatTo(os.Stdout, envelope); err != nil {
		return err
	}

Values implementing Texter control their own text rendering.

Waiting:

A workflow call can take many minutes. WaitReporter prints elapsed time
and retry notices to stderr while the caller waits:

	wait := cli.NewWaitReporter(os.Stderr)
	wait.Start("running workflow")
	defer wait.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
	// ctx is cancelled on SIGINT or SIGTERM
*/
package cli
