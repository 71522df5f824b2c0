package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/symplistic/contentiq-widget/internal/client"
	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/render"
	"github.com/symplistic/contentiq-widget/internal/session"
	"github.com/symplistic/contentiq-widget/internal/signer"
	"github.com/symplistic/contentiq-widget/internal/store"
	"github.com/symplistic/contentiq-widget/internal/theme"
	"github.com/symplistic/contentiq-widget/internal/widget"
)

// app wires one widget controller for a command invocation.
type app struct {
	client   *client.Client
	ctrl     *widget.Controller
	storage  store.Storage
	renderer *render.Processor
	format   render.Format
}

func newClient(o *options) (*client.Client, error) {
	s, err := signer.New(o.cfg.AgentID, o.cfg.Token, nil)
	if err != nil {
		return nil, err
	}
	return client.New(o.cfg.BackendURL, s,
		client.WithTimeout(o.cfg.RequestTimeout),
		client.WithLogger(o.logger)), nil
}

func newApp(ctx context.Context, o *options) (*app, error) {
	c, err := newClient(o)
	if err != nil {
		return nil, err
	}

	storage, err := store.Open(o.cfg.Store, o.cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}

	ctrl, err := widget.New(ctx, widget.Config{
		AgentID:       o.cfg.AgentID,
		ThreadTimeout: o.cfg.ThreadTimeout(),
		FeedbackDelay: o.cfg.FeedbackDelay,
		EagerSession:  o.cfg.EagerSession,
	}, c, session.NewStore(storage, session.WithLogger(o.logger)), widget.WithLogger(o.logger))
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	format, _ := render.ParseFormat(o.format)
	proc, err := render.NewProcessor(render.TerminalConfig{Width: o.width, Style: "auto"})
	if err != nil {
		ctrl.Shutdown()
		_ = storage.Close()
		return nil, err
	}

	return &app{client: c, ctrl: ctrl, storage: storage, renderer: proc, format: format}, nil
}

func (a *app) close() {
	a.ctrl.Shutdown()
	_ = a.storage.Close()
}

// styles colours CLI output from the widget theme.
type styles struct {
	bot   lipgloss.Style
	user  lipgloss.Style
	muted lipgloss.Style
	err   lipgloss.Style
	title lipgloss.Style
}

func newStyles(th theme.Theme) styles {
	return styles{
		bot:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(th.PrimaryColor)),
		user:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(th.PrimaryDarkColor)),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color(th.MutedColor)),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#D14343")),
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color(th.PrimaryColor)).
			Padding(0, 1),
	}
}

// printMessage writes an assistant message. label, when non-empty, is the
// handle used to give feedback on it.
func (a *app) printMessage(w io.Writer, st styles, msg domain.Message, label string) {
	name := a.ctrl.Theme().BotName
	header := st.bot.Render(name)
	if label != "" {
		header += " " + st.muted.Render(label)
	}
	fmt.Fprintln(w, header)

	if msg.Error {
		fmt.Fprintln(w, st.err.Render(msg.Text))
		return
	}
	fmt.Fprintln(w, strings.TrimRight(a.renderer.Render(msg, a.format), "\n"))
}
