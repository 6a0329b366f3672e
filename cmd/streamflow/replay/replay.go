// Package replaycmder provides the replay command, which reconstructs a
// transcript and dashboard from a captured event stream.
package replaycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/streamflow/cmd/streamflow/backend"
	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/config"
	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/state"
)

// watchDebounce coalesces the burst of events a single save produces.
const watchDebounce = 100 * time.Millisecond

type replayCommander struct {
	path         string
	message      string
	statePath    string
	responseNode string
	asJSON       bool
	watch        bool
	debug        bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
}

const replayLongDesc string = `Replay a captured producer event stream.

The file holds the raw response body of one turn ("data: ..." lines, as
written by curl -N or a recording proxy). It is fed through the same
pipeline the chat client uses, and the resulting transcript and dashboard
are printed.

With --watch the file is replayed again every time it changes, which is
useful while a capture is still being written.

Examples:
  streamflow replay turn.sse
  streamflow replay turn.sse --message "Find action movies" --json
  streamflow replay turn.sse --watch`

const replayShortDesc string = "Replay a captured event stream"

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, []string{config.FlagResponseNode})
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.path = args[0]
			cmder.responseNode = cmder.viper.GetString("client.response_node")
			cmder.out = cmd.OutOrStdout()
			cmder.logger = backend.NewLogger(cmder.debug)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if !cmder.watch {
				return cmder.replay(ctx)
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.watchFile(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagResponseNode, &cmder.responseNode)
	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "User message that started the turn")
	cmd.Flags().StringVar(&cmder.statePath, "state", "", "JSON state document to start from")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the reconstructed session as JSON")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Replay again whenever the file changes")

	return cmd
}

func (c *replayCommander) replay(ctx context.Context) error {
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	opts := []session.Option{
		session.WithResponseNode(c.responseNode),
		session.WithLogger(c.logger),
	}
	if c.statePath != "" {
		doc, err := loadDocument(c.statePath)
		if err != nil {
			return err
		}
		opts = append(opts, session.WithDocument(doc))
	}

	sess := session.New(opts...)
	defer sess.Close()

	sess.BeginTurn(c.message)
	if err := sess.Consume(ctx, f); err != nil {
		return fmt.Errorf("replaying %s: %w", c.path, err)
	}

	snap := sess.Snapshot()
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprint(c.out, cliui.RenderTranscript(snap.Transcript, cliui.TranscriptOptions{}))
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, cliui.RenderDashboard(snap.Document, snap.Notifications, time.Now()))
	return nil
}

func (c *replayCommander) watchFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(c.path)
	if err != nil {
		return err
	}

	// Watch the directory so editors that replace the file on save are
	// still picked up.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", c.path, err)
	}

	c.replayAndReport(ctx)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			debounce = time.After(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("watch error", "error", err)

		case <-debounce:
			debounce = nil
			c.replayAndReport(ctx)
		}
	}
}

func (c *replayCommander) replayAndReport(ctx context.Context) {
	fmt.Fprintf(c.out, "%s %s\n", cliui.DimStyle.Render("── replaying"), c.path)
	if err := c.replay(ctx); err != nil {
		fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
	}
}

func loadDocument(path string) (state.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Document{}, fmt.Errorf("reading state: %w", err)
	}

	doc := state.Default()
	if err := json.Unmarshal(data, &doc); err != nil {
		return state.Document{}, fmt.Errorf("parsing state: %w", err)
	}
	return doc, nil
}
