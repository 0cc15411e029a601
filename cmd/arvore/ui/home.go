package ui

import (
	"context"
	"strconv"
	"strings"

	"arvore/internal/logging"
	"arvore/internal/router"

	tea "github.com/charmbracelet/bubbletea"
)

type menuItem struct {
	label string
	run   func(p *HomePage) tea.Cmd
}

// HomePage is the landing screen. It re-reads the session on entry.
type HomePage struct {
	base
	cursor  int
	checked bool
}

type homeCheckedMsg struct{ err error }

// msgSessionUnreadable is shown when the saved session cannot be read.
const msgSessionUnreadable = "Não foi possível ler a sessão salva. Entre novamente."

func newHomePage(b base) *HomePage {
	return &HomePage{base: b}
}

func (p *HomePage) Title() string { return "Início" }

func (p *HomePage) Help() string {
	return p.styles().KeyHelp("↑/↓", "mover", "enter", "abrir", "q", "sair")
}

func (p *HomePage) Init() tea.Cmd {
	svc := p.deps.Auth
	return p.async(func(ctx context.Context) tea.Msg {
		_, err := svc.CheckToken(ctx)
		return homeCheckedMsg{err: err}
	})
}

func (p *HomePage) items() []menuItem {
	if !p.deps.state().Authenticated() {
		return []menuItem{
			{"Entrar", func(*HomePage) tea.Cmd { return navigate(router.LoginPath) }},
			{"Criar conta", func(*HomePage) tea.Cmd { return navigate(router.RegisterPath) }},
		}
	}
	return []menuItem{
		{"Minha linhagem", func(*HomePage) tea.Cmd { return navigate(router.ListPath) }},
		{"Adicionar pessoa", func(*HomePage) tea.Cmd { return navigate(router.CreatePath) }},
		{"Ver minha árvore", (*HomePage).goToTree},
		{"Sair", (*HomePage).logout},
	}
}

// goToTree opens the current user's tree, or the list when no person has
// been chosen as "me".
func (p *HomePage) goToTree() tea.Cmd {
	if id, ok := p.deps.state().CurrentUserID(); ok {
		return navigate(router.TreePath(strconv.Itoa(id)))
	}
	return navigate(router.ListPath)
}

func (p *HomePage) logout() tea.Cmd {
	svc := p.deps.Auth
	return func() tea.Msg {
		_ = svc.Logout(context.Background())
		return nil
	}
}

func (p *HomePage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case homeCheckedMsg:
		p.checked = true
		if n := len(p.items()); p.cursor >= n {
			p.cursor = n - 1
		}
		if msg.err != nil {
			logging.Get(logging.CategoryUI).Warn("session check failed: %v", msg.err)
			return p, toast(NoticeWarning, msgSessionUnreadable)
		}
	case tea.KeyMsg:
		items := p.items()
		switch msg.String() {
		case "up", "k":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down", "j":
			if p.cursor < len(items)-1 {
				p.cursor++
			}
		case "enter":
			return p, items[p.cursor].run(p)
		case "q":
			return p, tea.Quit
		}
	}
	return p, nil
}

func (p *HomePage) View() string {
	s := p.styles()
	var b strings.Builder
	b.WriteString(s.Title.Render("Árvore Genealógica"))
	b.WriteString("\n")
	if p.deps.state().Authenticated() {
		b.WriteString(s.Body.Render("Olá, " + p.deps.state().Username() + "!"))
	} else {
		b.WriteString(s.Subtitle.Render("Registre a história da sua família."))
	}
	b.WriteString("\n\n")
	for i, it := range p.items() {
		if i == p.cursor {
			b.WriteString(s.Selected.Render("› " + it.label))
		} else {
			b.WriteString(s.Body.Render("  " + it.label))
		}
		b.WriteString("\n")
	}
	return b.String()
}
