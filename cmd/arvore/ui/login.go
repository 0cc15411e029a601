package ui

import (
	"context"
	"errors"
	"strings"

	"arvore/internal/api"
	"arvore/internal/form"
	"arvore/internal/router"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// authDoneMsg is the result of a login or registration.
type authDoneMsg struct{ err error }

// formErrors maps validation failures to their fields.
func formErrors(err error) map[string][]string {
	var errs form.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string][]string)
	for _, fe := range errs {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// errorText is what a page shows for a failed action.
func errorText(err error) string {
	if msg := form.Message(err); msg != "" {
		return msg
	}
	return api.Message(err)
}

// LoginPage collects credentials and logs in.
type LoginPage struct {
	base
	fields  fieldSet
	spinner spinner.Model
	loading bool
}

func newLoginPage(b base) *LoginPage {
	s := b.deps.Styles
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner
	return &LoginPage{
		base: b,
		fields: newFieldSet(
			newField(s, "username", "Usuário", "seu usuário", false),
			newField(s, "password", "Senha", "mínimo 6 caracteres", true),
		),
		spinner: sp,
	}
}

func (p *LoginPage) Title() string { return "Entrar" }

func (p *LoginPage) Help() string {
	return p.styles().KeyHelp("tab", "próximo campo", "enter", "entrar", "ctrl+r", "criar conta", "esc", "início")
}

func (p *LoginPage) Init() tea.Cmd { return nil }

func (p *LoginPage) submit() tea.Cmd {
	creds := api.Credentials{
		Username: strings.TrimSpace(p.fields.get("username").value()),
		Password: p.fields.get("password").value(),
	}
	if err := form.Login(creds.Username, creds.Password); err != nil {
		p.fields.setErrors(formErrors(err))
		return toast(NoticeWarning, errorText(err))
	}
	p.fields.setErrors(nil)
	p.loading = true
	svc := p.deps.Auth
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		_, err := svc.Login(ctx, creds)
		return authDoneMsg{err: err}
	}))
}

func (p *LoginPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		p.loading = false
		if msg.err != nil {
			p.fields.setErrors(formErrors(msg.err))
			return p, toast(NoticeError, errorText(msg.err))
		}
		return p, navigate(router.ListPath)

	case spinner.TickMsg:
		if !p.loading {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if p.loading {
			return p, nil
		}
		switch msg.String() {
		case "tab", "down":
			p.fields.next()
			return p, nil
		case "shift+tab", "up":
			p.fields.prev()
			return p, nil
		case "enter":
			if !p.fields.last() {
				p.fields.next()
				return p, nil
			}
			return p, p.submit()
		case "ctrl+r":
			return p, navigate(router.RegisterPath)
		case "esc":
			return p, navigate(router.HomePath)
		}
	}
	return p, p.fields.update(msg)
}

func (p *LoginPage) View() string {
	s := p.styles()
	out := s.Title.Render("Entrar") + "\n" + p.fields.view(s)
	if p.loading {
		out += "\n" + p.spinner.View() + " Entrando..."
	}
	return out
}
