// Package tui is the terminal front end for the connect and main pages.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/brojonat/ticketchain/app"
	"github.com/brojonat/ticketchain/client"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldAmount = iota
	fieldRecipient
)

type (
	loadedMsg    struct{ err error }
	connectedMsg struct{ err error }
	mountedMsg   struct{ err error }
	mintedMsg    struct {
		result *client.SubmitResult
		err    error
	}
	// changedMsg is sent when page state changes in the background.
	changedMsg struct{}
)

// Model is the bubbletea model driving both pages.
type Model struct {
	ctx     context.Context
	connect *app.ConnectPage
	main    *app.MainPage
	router  *app.Router
	keys    KeyMap
	styles  styles

	amount    textinput.Model
	recipient textinput.Model
	focus     int
	notice    string
}

// NewModel builds the UI over the two pages. router decides the first page.
func NewModel(ctx context.Context, connect *app.ConnectPage, main *app.MainPage, router *app.Router) Model {
	amount := textinput.New()
	amount.Prompt = ""
	amount.Placeholder = "1"
	amount.CharLimit = 10
	amount.SetValue("1")
	amount.Focus()

	recipient := textinput.New()
	recipient.Prompt = ""
	recipient.Placeholder = "G..."
	recipient.CharLimit = 56
	recipient.Width = 56

	return Model{
		ctx:       ctx,
		connect:   connect,
		main:      main,
		router:    router,
		keys:      DefaultKeyMap,
		styles:    newStyles(DefaultTheme),
		amount:    amount,
		recipient: recipient,
	}
}

func (model Model) Init() tea.Cmd {
	if model.router.Current() == app.RouteMain {
		return model.mountCmd()
	}
	return model.loadCmd()
}

func (model Model) loadCmd() tea.Cmd {
	connect := model.connect
	return func() tea.Msg {
		return loadedMsg{err: connect.Load()}
	}
}

func (model Model) connectCmd() tea.Cmd {
	ctx, connect := model.ctx, model.connect
	return func() tea.Msg {
		return connectedMsg{err: connect.Connect(ctx)}
	}
}

func (model Model) mountCmd() tea.Cmd {
	ctx, main := model.ctx, model.main
	return func() tea.Msg {
		return mountedMsg{err: main.Mount(ctx)}
	}
}

func (model Model) mintCmd() tea.Cmd {
	ctx, main := model.ctx, model.main
	return func() tea.Msg {
		result, err := main.Mint(ctx)
		return mintedMsg{result: result, err: err}
	}
}

func (model Model) refreshCmd() tea.Cmd {
	ctx, main := model.ctx, model.main
	return func() tea.Msg {
		main.RefreshTotals(ctx)
		return changedMsg{}
	}
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case loadedMsg:
		if message.err != nil {
			model.notice = message.err.Error()
		}
		return model, nil

	case connectedMsg:
		return model.afterNavigation()

	case mountedMsg:
		if message.err != nil {
			model.notice = message.err.Error()
			return model, nil
		}
		if model.router.Current() != app.RouteMain {
			return model.afterNavigation()
		}
		view := model.main.View()
		model.amount.SetValue(view.Amount)
		model.recipient.SetValue(view.Recipient)
		return model, nil

	case mintedMsg:
		if message.err == nil && message.result != nil {
			model.notice = submitNotice(message.result)
		} else {
			model.notice = ""
		}
		return model, nil

	case changedMsg:
		return model, nil

	case tea.KeyMsg:
		if key.Matches(message, model.keys.ForceQuit) {
			return model, tea.Quit
		}
		if model.router.Current() == app.RouteMain {
			return model.updateMain(message)
		}
		return model.updateConnect(message)
	}

	return model, nil
}

func (model Model) updateConnect(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := model.connect.View()
	if view.Loading {
		return model, nil
	}

	switch {
	case key.Matches(message, model.keys.QuitConnect):
		return model, tea.Quit
	case view.State == app.Disconnected && key.Matches(message, model.keys.Connect):
		model.notice = ""
		return model, model.connectCmd()
	case view.State != app.Disconnected && key.Matches(message, model.keys.Open):
		if err := model.connect.Open(); err != nil {
			model.notice = err.Error()
			return model, nil
		}
		return model.afterNavigation()
	case view.State != app.Disconnected && key.Matches(message, model.keys.Disconnect):
		if err := model.connect.Disconnect(); err != nil {
			model.notice = err.Error()
		}
		return model, nil
	}
	return model, nil
}

func (model Model) updateMain(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.NextField):
		model.focus = (model.focus + 1) % 2
		if model.focus == fieldAmount {
			model.recipient.Blur()
			return model, model.amount.Focus()
		}
		model.amount.Blur()
		return model, model.recipient.Focus()

	case key.Matches(message, model.keys.Mint):
		if model.main.View().Busy {
			return model, nil
		}
		model.notice = ""
		return model, model.mintCmd()

	case key.Matches(message, model.keys.Refresh):
		return model, model.refreshCmd()

	case key.Matches(message, model.keys.SignOut):
		if err := model.main.Disconnect(); err != nil {
			model.notice = err.Error()
			return model, nil
		}
		if err := model.connect.Disconnect(); err != nil {
			model.notice = err.Error()
		}
		return model.afterNavigation()
	}

	var cmd tea.Cmd
	if model.focus == fieldAmount {
		model.amount, cmd = model.amount.Update(message)
		model.main.SetAmount(model.amount.Value())
	} else {
		model.recipient, cmd = model.recipient.Update(message)
		model.main.SetRecipient(model.recipient.Value())
	}
	return model, cmd
}

// afterNavigation starts whatever the current route needs.
func (model Model) afterNavigation() (tea.Model, tea.Cmd) {
	if model.router.Current() == app.RouteMain {
		return model, model.mountCmd()
	}
	return model, nil
}

func submitNotice(result *client.SubmitResult) string {
	if result.Hash != nil {
		return fmt.Sprintf("Submitted: %s (%s)", app.TruncateKey(*result.Hash), result.Status)
	}
	return fmt.Sprintf("Submitted (%s)", result.Status)
}

func (model Model) View() string {
	if model.router.Current() == app.RouteMain {
		return model.styles.frame.Render(model.viewMain())
	}
	return model.styles.frame.Render(model.viewConnect())
}

func (model Model) viewConnect() string {
	s := model.styles
	view := model.connect.View()

	var b strings.Builder
	b.WriteString(s.title.Render("TicketChain") + "\n")
	b.WriteString(s.faint.Render("Connect your wallet to continue.") + "\n\n")

	switch {
	case view.Loading:
		b.WriteString("Connecting...\n")
	case view.State != app.Disconnected:
		b.WriteString("Connected: " + view.PublicKey + "\n\n")
		b.WriteString(model.help(model.keys.Open, model.keys.Disconnect, model.keys.QuitConnect))
	default:
		b.WriteString(s.button.Render("Connect Wallet") + "\n\n")
		b.WriteString(model.help(model.keys.Connect, model.keys.QuitConnect))
	}

	if view.Error != "" {
		b.WriteString("\n" + s.err.Render(view.Error))
	} else if model.notice != "" {
		b.WriteString("\n" + s.err.Render(model.notice))
	}
	return b.String()
}

func (model Model) viewMain() string {
	s := model.styles
	view := model.main.View()

	var b strings.Builder
	b.WriteString(s.title.Render("TicketChain") + "\n\n")
	b.WriteString(s.label.Render("Connected Account") + "\n")
	b.WriteString(view.Account + "\n\n")

	b.WriteString(s.label.Render("Amount") + "\n")
	b.WriteString(model.amount.View() + "\n")
	b.WriteString(s.label.Render("Recipient Wallet Address") + "\n")
	b.WriteString(model.recipient.View() + "\n\n")

	if view.Busy {
		b.WriteString(s.button.Render("Minting...") + "\n")
	} else {
		b.WriteString(s.button.Render("Mint Ticket") + "\n")
	}

	if view.Error != "" {
		b.WriteString("\n" + s.err.Render(view.Error) + "\n")
	} else if model.notice != "" {
		b.WriteString("\n" + s.faint.Render(model.notice) + "\n")
	}

	b.WriteString("\n" + s.divider.Render(strings.Repeat("- ", 24)) + "\n")
	b.WriteString(s.label.Render("Total Tickets Minted  ") + s.value.Render(fmt.Sprint(view.Total)) + "\n")
	b.WriteString(s.label.Render("Last Ticket Owner     ") + view.LastOwner + "\n\n")

	b.WriteString(model.help(model.keys.NextField, model.keys.Mint, model.keys.Refresh, model.keys.SignOut, model.keys.ForceQuit))
	return b.String()
}

func (model Model) help(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		parts = append(parts, model.styles.key.Render(h.Key)+" "+model.styles.faint.Render(h.Desc))
	}
	return strings.Join(parts, model.styles.faint.Render(" • "))
}

// Run starts the UI and blocks until the user quits.
func Run(ctx context.Context, connect *app.ConnectPage, main *app.MainPage, router *app.Router) error {
	program := tea.NewProgram(NewModel(ctx, connect, main, router), tea.WithContext(ctx))
	main.OnChange(func() { program.Send(changedMsg{}) })
	defer main.Close()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
