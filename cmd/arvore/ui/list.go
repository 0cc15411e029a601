package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"arvore/internal/api"
	"arvore/internal/logging"
	"arvore/internal/router"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback for a list that fails without a server message.
const msgListFailed = "Não foi possível carregar a lista de pessoas. Verifique sua conexão ou se está logado."

// fold lowercases s and strips diacritics, so "Conceição" matches "conceicao".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// MatchPerson reports whether p matches the filter query on name or birth
// place, ignoring case and accents.
func MatchPerson(p api.Person, query string) bool {
	q := fold(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(fold(p.Nome), q) {
		return true
	}
	return p.LocalNascimento != nil && strings.Contains(fold(*p.LocalNascimento), q)
}

type (
	listLoadedMsg struct {
		persons []api.Person
		err     error
	}
	deletedMsg struct {
		name string
		err  error
	}
	meSetMsg struct {
		name string
		err  error
	}
)

// ListPage shows every person of the logged user.
type ListPage struct {
	base
	persons []api.Person
	visible []api.Person
	cursor  int
	loading bool
	loaded  bool

	filter    textinput.Model
	filtering bool
	confirm   Confirm
	spinner   spinner.Model
}

func newListPage(b base) *ListPage {
	s := b.deps.Styles
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner
	f := textinput.New()
	f.Prompt = "/ "
	f.Placeholder = "filtrar por nome ou local"
	f.PromptStyle = s.Prompt
	return &ListPage{base: b, spinner: sp, filter: f}
}

func (p *ListPage) Title() string { return "Minha linhagem" }

func (p *ListPage) Help() string {
	s := p.styles()
	if p.confirm.Active() {
		return s.KeyHelp("enter", "confirmar", "esc", "cancelar")
	}
	if p.filtering {
		return s.KeyHelp("enter", "aplicar", "esc", "limpar")
	}
	return s.KeyHelp("enter", "editar", "n", "nova", "t", "árvore", "m", "minha árvore",
		"e", "sou eu", "d", "excluir", "/", "filtrar", "r", "recarregar", "l", "sair")
}

// Init re-reads the session, then loads the list.
func (p *ListPage) Init() tea.Cmd {
	return p.load()
}

func (p *ListPage) load() tea.Cmd {
	p.loading = true
	svc, people := p.deps.Auth, p.deps.People
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		if _, err := svc.CheckToken(ctx); err != nil {
			logging.Get(logging.CategoryUI).Warn("token check before list failed: %v", err)
		}
		persons, err := people.ListPersons(ctx)
		return listLoadedMsg{persons: persons, err: err}
	}))
}

func (p *ListPage) applyFilter() {
	p.visible = p.visible[:0]
	for _, person := range p.persons {
		if MatchPerson(person, p.filter.Value()) {
			p.visible = append(p.visible, person)
		}
	}
	if p.cursor >= len(p.visible) {
		p.cursor = len(p.visible) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *ListPage) selected() (api.Person, bool) {
	if p.cursor < 0 || p.cursor >= len(p.visible) {
		return api.Person{}, false
	}
	return p.visible[p.cursor], true
}

func (p *ListPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case listLoadedMsg:
		p.loading = false
		if msg.err != nil {
			text := api.Message(msg.err)
			if text == "" {
				text = msgListFailed
			}
			return p, alert("Erro", text)
		}
		p.loaded = true
		p.persons = msg.persons
		p.visible = make([]api.Person, 0, len(p.persons))
		p.applyFilter()
		logging.UIDebug("list loaded: %d persons", len(p.persons))
		return p, nil

	case deletedMsg:
		if msg.err != nil {
			return p, alert("Erro ao Excluir", api.Message(msg.err))
		}
		return p, tea.Batch(toast(NoticeSuccess, fmt.Sprintf("'%s' excluído(a) com sucesso.", msg.name)), p.load())

	case meSetMsg:
		if msg.err != nil {
			return p, toast(NoticeError, "Erro: "+msg.err.Error())
		}
		return p, tea.Batch(toast(NoticeSuccess, fmt.Sprintf("'%s' definido(a) como você.", msg.name)), p.load())

	case spinner.TickMsg:
		if !p.loading {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if p.confirm.Active() {
			return p, p.confirm.Update(msg)
		}
		if p.filtering {
			return p, p.updateFilter(msg)
		}
		return p, p.handleKey(msg)
	}
	return p, nil
}

func (p *ListPage) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		p.filtering = false
		p.filter.Blur()
		return nil
	case "esc":
		p.filtering = false
		p.filter.Blur()
		p.filter.SetValue("")
		p.applyFilter()
		return nil
	}
	var cmd tea.Cmd
	p.filter, cmd = p.filter.Update(msg)
	p.applyFilter()
	return cmd
}

func (p *ListPage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.visible)-1 {
			p.cursor++
		}
	case "/":
		p.filtering = true
		p.filter.Focus()
	case "r":
		if !p.loading {
			return p.load()
		}
	case "n":
		return navigate(router.CreatePath)
	case "m":
		return p.viewMyTree()
	case "l":
		svc := p.deps.Auth
		p.confirm.Ask("Sair", "Tem certeza que deseja sair?", "Sair", func() tea.Msg {
			_ = svc.Logout(context.Background())
			return nil
		})
	case "esc":
		return navigate(router.HomePath)
	}

	person, ok := p.selected()
	if !ok {
		return nil
	}
	id := strconv.Itoa(person.PersonID())
	switch msg.String() {
	case "enter":
		return navigate(router.DetailPath(id))
	case "t":
		return navigate(router.TreePath(id))
	case "e":
		p.askSetMe(person)
	case "d":
		p.askDelete(person)
	}
	return nil
}

// viewMyTree opens the tree of the person chosen as "me".
func (p *ListPage) viewMyTree() tea.Cmd {
	if id, ok := p.deps.state().CurrentUserID(); ok {
		return navigate(router.TreePath(strconv.Itoa(id)))
	}
	return tea.Batch(
		toast(NoticeError, "Não foi possível carregar a árvore: Faça login novamente."),
		navigate(router.LoginPath),
	)
}

func (p *ListPage) askSetMe(person api.Person) {
	svc := p.deps.Auth
	id, name := person.PersonID(), person.Nome
	msg := fmt.Sprintf("Deseja definir '%s' como a pessoa que você representa na árvore genealógica?", name)
	p.confirm.Ask("Definir como Eu", msg, "Confirmar", p.async(func(ctx context.Context) tea.Msg {
		return meSetMsg{name: name, err: svc.SetCurrentUserPerson(ctx, id, name)}
	}))
}

func (p *ListPage) askDelete(person api.Person) {
	people := p.deps.People
	id, name := person.PersonID(), person.Nome
	p.confirm.Ask("Excluir Pessoa", fmt.Sprintf("Tem certeza que deseja excluir '%s'?", name), "Excluir",
		p.async(func(ctx context.Context) tea.Msg {
			return deletedMsg{name: name, err: people.DeletePerson(ctx, id)}
		}))
}

func (p *ListPage) View() string {
	s := p.styles()
	if p.confirm.Active() {
		return p.confirm.View(s)
	}

	var b strings.Builder
	if p.filtering || p.filter.Value() != "" {
		b.WriteString(p.filter.View())
		b.WriteString("\n\n")
	}
	if p.loading {
		b.WriteString(p.spinner.View() + " Carregando pessoas...\n\n")
	}
	if !p.loaded {
		return b.String()
	}
	if len(p.visible) == 0 {
		if len(p.persons) == 0 {
			b.WriteString(s.Muted.Render("Nenhuma pessoa cadastrada. Pressione n para adicionar."))
		} else {
			b.WriteString(s.Muted.Render("Nenhuma pessoa corresponde ao filtro."))
		}
		return b.String()
	}

	me, hasMe := p.deps.state().CurrentUserID()
	t := PersonTable(p.visible, me, hasMe)
	t.Selected = p.cursor
	if p.width > 0 {
		t.MaxCellWidth = max(12, p.width/4)
	}
	b.WriteString(t.View(s))
	b.WriteString(s.Muted.Render(fmt.Sprintf("\n%d de %d pessoas", len(p.visible), len(p.persons))))
	return b.String()
}

// PersonTable lays persons out as rows. The person chosen as "me" is marked.
func PersonTable(persons []api.Person, me int, hasMe bool) *SimpleTable {
	t := NewSimpleTable("", []string{"ID", "Nome", "Gênero", "Nascimento", "Local", "Situação"})
	for _, person := range persons {
		name := person.Nome
		if hasMe && person.PersonID() == me {
			name += " (eu)"
		}
		t.AddRow(
			strconv.Itoa(person.PersonID()),
			name,
			person.Genero,
			deref(person.DataNascimento),
			deref(person.LocalNascimento),
			person.StatusVida,
		)
	}
	return t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
