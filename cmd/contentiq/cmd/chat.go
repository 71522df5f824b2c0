package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

const chatHelp = `Commands:
  /up [n]     mark reply n (default: latest) as helpful
  /down [n]   mark reply n (default: latest) as not helpful
  /session    show the current session
  /expire     end the current thread
  /help       show this help
  /quit       exit`

type commandKind int

const (
	cmdMessage commandKind = iota
	cmdFeedback
	cmdSession
	cmdExpire
	cmdHelp
	cmdQuit
	cmdEmpty
)

type command struct {
	kind     commandKind
	text     string
	feedback domain.FeedbackType
	// target is the 1-based reply number; 0 means the latest.
	target int
}

func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdEmpty}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdMessage, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/up", "/down":
		c := command{kind: cmdFeedback, feedback: domain.FeedbackHelpful}
		if fields[0] == "/down" {
			c.feedback = domain.FeedbackNotHelpful
		}
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 1 {
				return command{}, fmt.Errorf("reply number must be a positive integer, got %q", fields[1])
			}
			c.target = n
		}
		return c, nil
	case "/session":
		return command{kind: cmdSession}, nil
	case "/expire":
		return command{kind: cmdExpire}, nil
	case "/help", "/?":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %s (try /help)", fields[0])
}

// replies numbers the assistant messages that accept feedback.
type replies []string

func (r *replies) add(messageID string) int {
	*r = append(*r, messageID)
	return len(*r)
}

func (r replies) resolve(target int) (string, error) {
	if len(r) == 0 {
		return "", errors.New("no reply to rate yet")
	}
	if target == 0 {
		return r[len(r)-1], nil
	}
	if target > len(r) {
		return "", fmt.Errorf("no reply %d (last is %d)", target, len(r))
	}
	return r[target-1], nil
}

func newChatCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runChat(ctx, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, o *options, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, o)
	if err != nil {
		return err
	}
	defer a.close()

	a.ctrl.Start(ctx)
	a.ctrl.Open(ctx)

	st := newStyles(a.ctrl.Theme())
	th := a.ctrl.Theme()
	fmt.Fprintln(out, st.title.Render(th.Title))
	for _, m := range a.ctrl.Messages() {
		a.printMessage(out, st, m, "")
	}
	fmt.Fprintln(out, st.muted.Render("Type /help for commands."))

	var rated replies
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, st.user.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		c, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, st.err.Render(err.Error()))
			continue
		}

		switch c.kind {
		case cmdEmpty:
		case cmdQuit:
			return nil
		case cmdHelp:
			fmt.Fprintln(out, st.muted.Render(chatHelp))
		case cmdSession:
			printSessionInfo(ctx, out, st, a)
		case cmdExpire:
			if err := a.ctrl.ExpireSession(ctx); err != nil {
				fmt.Fprintln(out, st.err.Render(err.Error()))
				continue
			}
			fmt.Fprintln(out, st.muted.Render("Thread ended. Your next message starts a new one."))
		case cmdFeedback:
			id, err := rated.resolve(c.target)
			if err != nil {
				fmt.Fprintln(out, st.err.Render(err.Error()))
				continue
			}
			if err := a.ctrl.Feedback(ctx, id, c.feedback); err != nil {
				fmt.Fprintln(out, st.err.Render("Feedback not sent: "+err.Error()))
				continue
			}
			fmt.Fprintln(out, st.muted.Render("Thanks for the feedback."))
		case cmdMessage:
			msg, _ := a.ctrl.Send(ctx, c.text)
			label := ""
			if msg.Trackable() {
				label = fmt.Sprintf("[%d]", rated.add(msg.MessageID))
			}
			a.printMessage(out, st, msg, label)
		}
	}
}

func printSessionInfo(ctx context.Context, out io.Writer, st styles, a *app) {
	info, err := a.ctrl.SessionInfo(ctx)
	switch {
	case err != nil:
		fmt.Fprintln(out, st.err.Render(err.Error()))
	case info == nil:
		fmt.Fprintln(out, st.muted.Render("No session yet. One starts with your next message."))
	default:
		fmt.Fprintf(out, "session:        %s\n", info.SessionID)
		fmt.Fprintf(out, "created:        %s\n", info.Created.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "last activity:  %s (%s ago)\n", info.LastActivity.Format("15:04:05"), info.SinceActivity.Round(time.Second))
		fmt.Fprintf(out, "timed out:      %t (after %d min)\n", info.ThreadTimedOut, info.ThreadTimeoutMinutes)
	}
}
