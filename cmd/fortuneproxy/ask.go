package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ailife-hq/fortune-proxy/pkg/cli"
	"ailife-hq/fortune-proxy/pkg/config"
	"ailife-hq/fortune-proxy/pkg/normalize"
	"ailife-hq/fortune-proxy/pkg/proxy"
	"ailife-hq/fortune-proxy/pkg/proxy/types"
	"ailife-hq/fortune-proxy/pkg/telemetry/logging"
	"ailife-hq/fortune-proxy/pkg/workflow"
)

var askFlags struct {
	name   string
	gender string
	place  string
	date   string
	clock  string
	file   string
	mode   string
	server string
	output string
	quiet  bool
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Request one fortune reading",
	Long: `Submit birth data and print the normalized reading.

By default the workflow is called directly with the configured credential.
With --server the request goes to a running proxy instead, and no
credential is needed locally.

Examples:
  # Call the workflow directly
  fortuneproxy ask --name 张三 --gender male --place 北京 --date 1990-05-15 --time 14:30

  # Go through a running proxy, streaming upstream
  fortuneproxy ask --server http://127.0.0.1:3000 --mode stream --file birth.json

  # Read the body from stdin and print the envelope
  echo '{"name":"A","gender":"female","birth_place":"X","year":1995,"month":1,"day":2}' | fortuneproxy ask --file - -o json`,
	RunE: askFortune,
}

func init() {
	rootCmd.AddCommand(askCmd)

	f := askCmd.Flags()
	f.StringVar(&askFlags.name, "name", "", "name")
	f.StringVar(&askFlags.gender, "gender", "", "gender")
	f.StringVar(&askFlags.place, "place", "", "birth place")
	f.StringVar(&askFlags.date, "date", "", "birth date, YYYY-MM-DD")
	f.StringVar(&askFlags.clock, "time", "00:00:00", "birth time, HH:MM or HH:MM:SS")
	f.StringVarP(&askFlags.file, "file", "f", "", `JSON request body file, "-" for stdin`)
	f.StringVar(&askFlags.mode, "mode", "", "upstream mode (sync, stream); default from config")
	f.StringVar(&askFlags.server, "server", "", "base URL of a running proxy")
	f.StringVarP(&askFlags.output, "output", "o", "text", "output format: text, json")
	f.BoolVarP(&askFlags.quiet, "quiet", "q", false, "do not show progress")
}

func askFortune(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(askFlags.output)
	if err != nil {
		return err
	}
	formatter, err := cli.NewFormatter(format)
	if err != nil {
		return err
	}
	var mode workflow.Mode
	if askFlags.mode != "" {
		if mode, err = workflow.ParseMode(askFlags.mode); err != nil {
			return err
		}
	}

	body, err := askBody(cmd.InOrStdin())
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := cli.SetupSignalHandler(parent)
	defer stop()

	wait := cli.NewWaitReporter(cmd.ErrOrStderr())
	if askFlags.quiet {
		wait = nil
	}

	var env *types.Envelope
	if askFlags.server != "" {
		env, err = askRemote(ctx, cmd, mode, body, wait)
	} else {
		env, err = askLocal(ctx, cmd, mode, body, wait)
	}
	if err != nil {
		return cli.NewCommandError("ask", err)
	}

	if err := formatter.FormatTo(cmd.OutOrStdout(), envelopeView{env}); err != nil {
		return err
	}
	if !env.Success {
		return cli.NewCommandError("ask", errors.New(env.Error))
	}
	return nil
}

// askBody builds the request body from --file or the individual flags.
func askBody(stdin io.Reader) ([]byte, error) {
	if askFlags.file != "" {
		if askFlags.file == "-" {
			return io.ReadAll(stdin)
		}
		return os.ReadFile(askFlags.file)
	}
	return birthBody(askFlags.name, askFlags.gender, askFlags.place, askFlags.date, askFlags.clock)
}

func birthBody(name, gender, place, date, clock string) ([]byte, error) {
	if date == "" {
		return nil, errors.New("--date is required unless --file is given")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
	}
	tod, err := parseClock(clock)
	if err != nil {
		return nil, err
	}

	return json.Marshal(map[string]any{
		"name":        name,
		"gender":      gender,
		"birth_place": place,
		"year":        day.Year(),
		"month":       int(day.Month()),
		"day":         day.Day(),
		"hour":        tod.Hour(),
		"minute":      tod.Minute(),
		"second":      tod.Second(),
	})
}

func parseClock(s string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --time %q: want HH:MM or HH:MM:SS", s)
}

func askLocal(ctx context.Context, cmd *cobra.Command, mode workflow.Mode, body []byte, wait *cli.WaitReporter) (*types.Envelope, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose {
		cfg.Telemetry.Logging.Format = "text"
		cfg.Telemetry.Logging.Level = "debug"
		if logger, err = logging.FromConfig(cfg.Telemetry.Logging); err != nil {
			return nil, err
		}
	}

	opts := pipelineOptions{}
	if wait != nil {
		opts.recorder = wait
	}
	p, err := newPipeline(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}
	defer p.Close(context.Background())

	if wait != nil {
		wait.Start("running workflow")
	}

	id := uuid.NewString()
	done := make(chan *proxy.Call, 1)
	go func() {
		done <- p.forwarder.Forward(logging.WithRequestID(ctx, id), id, mode, body)
	}()

	select {
	case call := <-done:
		if wait != nil {
			wait.Finish()
		}
		_, env := proxy.Respond(call)
		return env, nil
	case <-ctx.Done():
		err := errors.New("interrupted; the workflow run may still complete upstream")
		if wait != nil {
			wait.Error(err)
		}
		return nil, err
	}
}

func askRemote(ctx context.Context, cmd *cobra.Command, mode workflow.Mode, body []byte, wait *cli.WaitReporter) (*types.Envelope, error) {
	target := strings.TrimRight(askFlags.server, "/") + config.DefaultProxyPath
	if mode != "" {
		target += "?mode=" + string(mode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fortuneproxy-cli/"+Version)

	if wait != nil {
		wait.Start("waiting for " + askFlags.server)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if wait != nil {
			wait.Error(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	var env types.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		err = fmt.Errorf("proxy answered %s with an unreadable body: %w", resp.Status, err)
		if wait != nil {
			wait.Error(err)
		}
		return nil, err
	}
	if wait != nil {
		wait.Finish()
	}
	return &env, nil
}

// envelopeView renders an envelope for the terminal. Its JSON form is
// the envelope itself.
type envelopeView struct {
	*types.Envelope
}

// Text implements cli.Texter.
func (v envelopeView) Text() string {
	var sb strings.Builder
	env := v.Envelope

	if !env.Success {
		fmt.Fprintf(&sb, "✗ %s: %s\n", env.Error, env.Message)
		if env.Code != nil {
			fmt.Fprintf(&sb, "  code:      %d\n", *env.Code)
		}
		if env.DebugURL != "" {
			fmt.Fprintf(&sb, "  debug_url: %s\n", env.DebugURL)
		}
		if env.IsRetryable() {
			sb.WriteString("  this failure is transient; try again later\n")
		}
		return sb.String()
	}

	r := env.Data
	if r == nil {
		return "✓ (empty result)\n"
	}
	fmt.Fprintf(&sb, "姓名: %s\n", r.Name)
	fmt.Fprintf(&sb, "出生时间: %s\n", r.BasicInfo.BirthDate)
	fmt.Fprintf(&sb, "出生地点: %s\n", r.BasicInfo.BirthPlace)
	fmt.Fprintf(&sb, "性别: %s\n\n", r.BasicInfo.Gender)
	sb.WriteString(contentText(r.FortuneContent))
	if r.Diagnostic {
		sb.WriteString("\n! unrecognized workflow output, shown raw\n")
	}
	return sb.String()
}

func contentText(c normalize.Content) string {
	if !c.IsSections() {
		return strings.TrimRight(c.Text, "\n") + "\n"
	}
	var sb strings.Builder
	for i, s := range c.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "【%s】\n%s\n", s.Title, strings.TrimRight(s.Content, "\n"))
	}
	return sb.String()
}
