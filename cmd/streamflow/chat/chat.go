// Package chatcmder provides the chat command: an interactive terminal
// client for a streaming dashboard assistant.
package chatcmder

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/streamflow/cmd/streamflow/backend"
	"github.com/papercomputeco/streamflow/pkg/cliui"
	"github.com/papercomputeco/streamflow/pkg/client"
	"github.com/papercomputeco/streamflow/pkg/config"
	"github.com/papercomputeco/streamflow/pkg/dotdir"
	"github.com/papercomputeco/streamflow/pkg/session"
	"github.com/papercomputeco/streamflow/pkg/transcript"
)

// InitMessage is sent as the first turn of a new conversation so the
// assistant fills the dashboard.
const InitMessage = "Initialize the dashboard with featured content and recommendations"

type chatCommander struct {
	endpoint     string
	responseNode string
	timeout      time.Duration
	ttl          time.Duration

	noInit    bool
	resume    bool
	debug     bool
	configDir string

	viper  *viper.Viper
	logger *slog.Logger
	ddm    *dotdir.Manager

	in  io.Reader
	out io.Writer
	tty bool
}

const chatLongDesc string = `Start an interactive chat session with a streaming dashboard assistant.

Each message is posted to the producer endpoint together with the current
conversation and dashboard state. The reply streams into the transcript as
it is generated, and the assistant's dashboard updates are applied as they
arrive. After every turn the dashboard is printed and the session is saved
to the .streamflow/ directory.

Commands:
  /dismiss <id>    Dismiss a notification
  /state           Print the dashboard state document as JSON
  /clear           Clear the transcript and the saved session
  /exit            Quit (Ctrl+D also quits)

Point --endpoint at "streamflow serve proxy" to record the conversation.

Examples:
  streamflow chat
  streamflow chat --endpoint http://localhost:8080/api/chat
  streamflow chat --resume`

const chatShortDesc string = "Chat with a streaming dashboard assistant"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, []string{
				config.FlagEndpoint,
				config.FlagResponseNode,
				config.FlagTimeout,
				config.FlagNotificationTTL,
			})
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.endpoint = cmder.viper.GetString("client.endpoint")
			cmder.responseNode = cmder.viper.GetString("client.response_node")
			cmder.timeout = cmder.viper.GetDuration("client.timeout")
			cmder.ttl = cmder.viper.GetDuration("notifications.ttl")

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.tty = isTerminal(cmder.out)

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagResponseNode, &cmder.responseNode)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddDurationFlag(cmd, config.Flags, config.FlagNotificationTTL, &cmder.ttl)
	cmd.Flags().BoolVar(&cmder.noInit, "no-init", false, "Skip the dashboard initialization turn")
	cmd.Flags().BoolVarP(&cmder.resume, "resume", "r", false, "Resume the session saved in .streamflow/")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = backend.NewLogger(c.debug)
	c.ddm = dotdir.NewManager()

	opts := []session.Option{
		session.WithResponseNode(c.responseNode),
		session.WithNotificationTTL(c.ttl),
		session.WithLogger(c.logger),
	}

	var saved *dotdir.SessionState
	if c.resume {
		var err error
		saved, err = c.ddm.LoadSessionState(c.configDir)
		if err != nil {
			return fmt.Errorf("loading session state: %w", err)
		}
	}

	fmt.Fprintln(c.out)
	if saved != nil {
		opts = append(opts,
			session.WithID(saved.SessionID),
			session.WithDocument(saved.Document),
			session.WithTranscript(saved.Transcript),
		)
		fmt.Fprintf(c.out, "  %s Resuming session %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(saved.SessionID),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(saved.Transcript))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New session\n", cliui.DimStyle.Render("●"))
	}

	printer := newStreamPrinter(c.out)
	opts = append(opts, session.WithListener(printer.observe))

	sess := session.New(opts...)
	defer sess.Close()

	cl := client.New(c.endpoint,
		client.WithTimeout(c.timeout),
		client.WithLogger(c.logger),
	)

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Endpoint:"), cliui.ValueStyle.Render(cl.Endpoint()))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	if saved != nil {
		fmt.Fprint(c.out, cliui.RenderTranscript(saved.Transcript, cliui.TranscriptOptions{Markdown: c.tty}))
		c.printDashboard(sess)
	} else if !c.noInit {
		c.turn(ctx, sess, cl, printer, InitMessage)
	}

	if len(sess.Transcript()) <= 2 {
		fmt.Fprintf(c.out, "%s\n\n", cliui.RenderSuggestions())
	}

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.UserStyle.Render("you› "))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(sess, input)
			if err != nil {
				fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
			}
			if quit {
				break
			}
			continue
		}

		// A digit picks one of the quick suggestions.
		if len(input) == 1 && input[0] >= '1' && int(input[0]-'1') < len(cliui.QuickSuggestions) {
			input = cliui.QuickSuggestions[input[0]-'1']
			fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render(input))
		}

		c.turn(ctx, sess, cl, printer, input)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return c.save(sess)
}

// turn sends one message and prints the reply and the dashboard. Errors are
// reported inline so the conversation can continue.
func (c *chatCommander) turn(ctx context.Context, sess *session.Session, cl *client.Client, printer *streamPrinter, input string) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	printer.begin()
	err := cl.Send(turnCtx, sess, input)
	streamed := printer.end()

	// The final reply can replace what was streamed, or arrive without any
	// streaming at all.
	reply := lastAssistant(sess.Transcript())
	switch {
	case reply != "" && reply != streamed:
		if streamed != "" {
			fmt.Fprintln(c.out)
		}
		fmt.Fprintln(c.out, cliui.RenderEntry(transcript.Entry{Role: transcript.RoleAssistant, Content: reply}, c.tty))
	case streamed != "":
		fmt.Fprintln(c.out)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("(interrupted)"))
	default:
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintf(c.out, "  %s producer error (%d): %s\n", cliui.FailMark, apiErr.StatusCode, apiErr.Message)
		} else {
			fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		}
	}

	c.printDashboard(sess)

	if err := c.save(sess); err != nil {
		c.logger.Warn("saving session", "error", err)
	}
}

// command runs a slash command and reports whether the chat should end.
func (c *chatCommander) command(sess *session.Session, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/dismiss":
		if arg == "" {
			return false, errors.New("usage: /dismiss <id>")
		}
		if !sess.DismissNotification(arg) {
			return false, fmt.Errorf("no notification %q", arg)
		}
		fmt.Fprintf(c.out, "  %s dismissed %s\n", cliui.SuccessMark, arg)
		return false, nil

	case "/state":
		doc, err := json.MarshalIndent(sess.Document(), "", "  ")
		if err != nil {
			return false, fmt.Errorf("encoding state: %w", err)
		}
		fmt.Fprintf(c.out, "%s\n", doc)
		return false, nil

	case "/clear":
		sess.Reset()
		if err := c.ddm.ClearSessionState(c.configDir); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "  %s transcript cleared\n", cliui.SuccessMark)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %s (try /dismiss, /state, /clear, /exit)", name)
	}
}

func (c *chatCommander) printDashboard(sess *session.Session) {
	snap := sess.Snapshot()
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, cliui.RenderDashboard(snap.Document, snap.Notifications, time.Now()))
	fmt.Fprintln(c.out)
}

func (c *chatCommander) save(sess *session.Session) error {
	snap := sess.Snapshot()
	return c.ddm.SaveSessionState(&dotdir.SessionState{
		SessionID:  snap.SessionID,
		Transcript: snap.Transcript,
		Document:   snap.Document,
		SavedAt:    time.Now().UTC(),
	}, c.configDir)
}

func lastAssistant(entries []transcript.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	last := entries[len(entries)-1]
	if last.Role != transcript.RoleAssistant {
		return ""
	}
	return last.Content
}
