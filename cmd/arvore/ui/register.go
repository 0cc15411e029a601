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

// RegisterPage creates an account and logs in with it.
type RegisterPage struct {
	base
	fields  fieldSet
	spinner spinner.Model
	loading bool
}

func newRegisterPage(b base) *RegisterPage {
	s := b.deps.Styles
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner
	return &RegisterPage{
		base: b,
		fields: newFieldSet(
			newField(s, "username", "Usuário", "mínimo 4 caracteres", false),
			newField(s, "password", "Senha", "mínimo 6 caracteres", true),
			newField(s, "password2", "Confirmar senha", "repita a senha", true),
		),
		spinner: sp,
	}
}

func (p *RegisterPage) Title() string { return "Criar conta" }

func (p *RegisterPage) Help() string {
	return p.styles().KeyHelp("tab", "próximo campo", "enter", "registrar", "ctrl+l", "entrar", "esc", "início")
}

func (p *RegisterPage) Init() tea.Cmd { return nil }

func (p *RegisterPage) submit() tea.Cmd {
	reg := api.Registration{
		Username:  strings.TrimSpace(p.fields.get("username").value()),
		Password:  p.fields.get("password").value(),
		Password2: p.fields.get("password2").value(),
	}
	if err := form.Register(reg.Username, reg.Password, reg.Password2); err != nil {
		p.fields.setErrors(formErrors(err))
		if errors.Is(err, form.ErrPasswordMismatch) {
			return alert("Erro", form.MsgPasswordMismatch)
		}
		return alert("Erro de Validação", errorText(err))
	}
	p.fields.setErrors(nil)
	p.loading = true
	svc := p.deps.Auth
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		_, err := svc.Register(ctx, reg)
		return authDoneMsg{err: err}
	}))
}

func (p *RegisterPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		p.loading = false
		if msg.err != nil {
			p.fields.setErrors(formErrors(msg.err))
			return p, alert("Erro de Registro", errorText(msg.err))
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
		case "ctrl+l":
			return p, navigate(router.LoginPath)
		case "esc":
			return p, navigate(router.HomePath)
		}
	}
	return p, p.fields.update(msg)
}

func (p *RegisterPage) View() string {
	s := p.styles()
	out := s.Title.Render("Criar conta") + "\n" + p.fields.view(s)
	if p.loading {
		out += "\n" + p.spinner.View() + " Registrando..."
	}
	return out
}
