package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"arvore/internal/api"
	"arvore/internal/logging"
	"arvore/internal/router"
	"arvore/internal/tree"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	msgTreeNoID       = "Nenhum ID de pessoa fornecido e usuário não logado. Não é possível carregar a árvore."
	msgTreeFailed     = "Não foi possível carregar a árvore genealógica. Verifique a conexão ou o ID."
	msgNodeNotIndexed = "Dados da pessoa não disponíveis para detalhes."
)

type treeLoadedMsg struct {
	view *tree.View
	err  error
}

// nodeRef addresses one node of the view.
type nodeRef struct {
	level, group, node int
}

// TreePage loads and renders the family tree rooted at one person.
type TreePage struct {
	base
	rawID    string
	personID int

	view     *tree.View
	errMsg   string
	loading  bool
	cursor   nodeRef
	modal    *PersonModal
	viewport viewport.Model
	spinner  spinner.Model
}

func newTreePage(b base, id string) *TreePage {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = b.deps.Styles.Spinner
	return &TreePage{base: b, rawID: id, spinner: sp, viewport: viewport.New(80, 20)}
}

func (p *TreePage) Title() string {
	if p.view != nil && p.view.Root != nil {
		return "Árvore de " + p.view.Root.Nome
	}
	return "Árvore genealógica"
}

func (p *TreePage) Help() string {
	s := p.styles()
	if p.modal != nil {
		return s.KeyHelp("esc", "fechar", "e", "editar")
	}
	return s.KeyHelp("←/→", "pessoa", "↑/↓", "geração", "enter", "detalhes",
		"n", "nova pessoa", "pgup/pgdn", "rolar", "esc", "lista")
}

func (p *TreePage) SetSize(width, height int) {
	p.base.SetSize(width, height)
	p.viewport.Width = width
	p.viewport.Height = max(3, height-2)
	p.refresh()
}

// Init resolves which person to load. Without an id in the path it uses the
// person chosen as "me"; with neither it shows a warning and loads nothing.
func (p *TreePage) Init() tea.Cmd {
	if p.rawID != "" {
		n, err := strconv.Atoi(p.rawID)
		if err != nil || n <= 0 {
			p.errMsg = msgTreeFailed
			return toast(NoticeError, msgTreeFailed)
		}
		p.personID = n
	} else if id, ok := p.deps.state().CurrentUserID(); ok {
		p.personID = id
	} else {
		p.errMsg = msgTreeNoID
		return toast(NoticeWarning, msgTreeNoID)
	}

	p.loading = true
	people, id := p.deps.People, p.personID
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		resp, err := people.GetTree(ctx, id)
		if err != nil {
			return treeLoadedMsg{err: err}
		}
		return treeLoadedMsg{view: tree.Build(resp)}
	}))
}

func (p *TreePage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case treeLoadedMsg:
		p.loading = false
		if msg.err != nil {
			logging.Get(logging.CategoryTree).Warn("load tree %d: %v", p.personID, msg.err)
			p.errMsg = msgTreeFailed
			return p, toast(NoticeError, msgTreeFailed)
		}
		p.view = msg.view
		p.cursor = p.rootRef()
		p.refresh()
		return p, nil

	case spinner.TickMsg:
		if !p.loading {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if p.modal != nil {
			if msg.String() == "e" {
				return p, navigate(router.DetailPath(strconv.Itoa(p.modal.Person.PersonID())))
			}
			if p.modal.Update(msg) {
				p.modal = nil
			}
			return p, nil
		}
		return p, p.handleKey(msg)
	}
	return p, nil
}

func (p *TreePage) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "backspace":
		return navigate(router.ListPath)
	case "n":
		return navigate(router.CreatePath)
	case "left", "h":
		p.move(-1)
	case "right", "l":
		p.move(1)
	case "up", "k":
		p.moveLevel(-1)
	case "down", "j":
		p.moveLevel(1)
	case "enter":
		return p.openSelected()
	default:
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return cmd
	}
	p.refresh()
	return nil
}

// Selected returns the node under the cursor.
func (p *TreePage) Selected() (tree.Node, bool) {
	if p.view == nil {
		return tree.Node{}, false
	}
	c := p.cursor
	if c.level >= len(p.view.Levels) {
		return tree.Node{}, false
	}
	groups := p.view.Levels[c.level].Groups
	if c.group >= len(groups) || c.node >= len(groups[c.group].Nodes) {
		return tree.Node{}, false
	}
	return groups[c.group].Nodes[c.node], true
}

// openSelected opens the modal for the selected node. The modal shows the
// indexed record, which carries every field the server sent.
func (p *TreePage) openSelected() tea.Cmd {
	n, ok := p.Selected()
	if !ok {
		return toast(NoticeWarning, msgNodeNotIndexed)
	}
	person, ok := p.view.Person(n.PersonID())
	if !ok {
		return toast(NoticeWarning, msgNodeNotIndexed)
	}
	p.modal = NewPersonModal(p.styles(), p.view, person, p.width)
	return nil
}

// Modal returns the open person modal, if any.
func (p *TreePage) Modal() *PersonModal { return p.modal }

func (p *TreePage) rootRef() nodeRef {
	if p.view == nil || p.view.Root == nil {
		return nodeRef{}
	}
	root := p.view.Root.PersonID()
	for li, lvl := range p.view.Levels {
		for gi, g := range lvl.Groups {
			for ni, n := range g.Nodes {
				if n.PersonID() == root {
					return nodeRef{li, gi, ni}
				}
			}
		}
	}
	return nodeRef{}
}

// flat lists the nodes of one level in display order.
func (p *TreePage) flat(level int) []nodeRef {
	var refs []nodeRef
	for gi, g := range p.view.Levels[level].Groups {
		for ni := range g.Nodes {
			refs = append(refs, nodeRef{level, gi, ni})
		}
	}
	return refs
}

func (p *TreePage) move(delta int) {
	if p.view == nil || len(p.view.Levels) == 0 {
		return
	}
	refs := p.flat(p.cursor.level)
	for i, r := range refs {
		if r == p.cursor {
			if j := i + delta; j >= 0 && j < len(refs) {
				p.cursor = refs[j]
			}
			return
		}
	}
}

func (p *TreePage) moveLevel(delta int) {
	if p.view == nil {
		return
	}
	for l := p.cursor.level + delta; l >= 0 && l < len(p.view.Levels); l += delta {
		if refs := p.flat(l); len(refs) > 0 {
			p.cursor = refs[0]
			return
		}
	}
}

// refresh re-renders the tree into the viewport and scrolls the selected
// level into view.
func (p *TreePage) refresh() {
	if p.view == nil {
		return
	}
	content, top := p.render()
	p.viewport.SetContent(content)
	if top < p.viewport.YOffset || top >= p.viewport.YOffset+p.viewport.Height {
		p.viewport.SetYOffset(top)
	}
}

// render draws every level and returns the line where the selected level
// starts.
func (p *TreePage) render() (string, int) {
	s := p.styles()
	var b strings.Builder
	lines, top := 0, 0
	write := func(str string) {
		b.WriteString(str)
		lines += strings.Count(str, "\n")
	}

	for li, lvl := range p.view.Levels {
		if li == p.cursor.level {
			top = lines
		}
		write(s.Subtitle.Render(levelLabel(lvl.Level)) + "\n")
		boxes := make([]string, 0, len(lvl.Groups))
		for gi, g := range lvl.Groups {
			boxes = append(boxes, p.renderGroup(s, li, gi, g))
		}
		write(lipgloss.JoinHorizontal(lipgloss.Top, boxes...) + "\n\n")
	}

	if len(p.view.Regions) > 0 {
		parts := make([]string, 0, len(p.view.Regions))
		for _, r := range p.view.Regions {
			parts = append(parts, fmt.Sprintf("%s (%d)", r.Regiao, r.Count))
		}
		write(s.Bold.Render("Regiões da família: ") + s.Body.Render(strings.Join(parts, ", ")) + "\n")
	}
	return b.String(), top
}

func (p *TreePage) renderGroup(s Styles, li, gi int, g tree.Group) string {
	style := s.Group
	if g.Type == api.GroupCouple {
		style = s.Couple
	}
	rows := make([]string, 0, len(g.Nodes))
	for ni, n := range g.Nodes {
		rows = append(rows, p.renderNode(s, n, p.cursor == nodeRef{li, gi, ni}))
	}
	sep := " "
	if g.Type == api.GroupCouple {
		sep = s.Muted.Render(" ♥ ")
	}
	return style.Render(strings.Join(rows, sep))
}

func (p *TreePage) renderNode(s Styles, n tree.Node, focused bool) string {
	name := n.Nome
	if n.IsRootDisplayNode {
		name = "★ " + name
	}
	detail := n.Relacao
	if age := string(n.Idade); age != "" {
		detail = joinNonEmpty(" · ", detail, age)
	}
	if n.StatusVida != "" && n.StatusVida != "Vivo(a)" {
		detail = joinNonEmpty(" · ", detail, n.StatusVida)
	}

	title := s.Node.Foreground(GenderColor(n.Genero)).Bold(true).Render(name)
	if focused {
		title = s.Focus.Render(name)
	}
	if detail == "" {
		return title
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, s.Muted.Render(detail))
}

func levelLabel(level int) string {
	return fmt.Sprintf("Geração %d", level)
}

func (p *TreePage) View() string {
	s := p.styles()
	if p.modal != nil {
		return p.modal.View(s)
	}
	if p.loading {
		return p.spinner.View() + " Carregando árvore genealógica..."
	}
	if p.errMsg != "" {
		return s.Error.Render(p.errMsg) + "\n\n" + s.KeyHelp("esc", "voltar para a lista")
	}
	if p.view == nil {
		return ""
	}
	if len(p.view.Levels) == 0 {
		return s.Muted.Render("Nenhum membro encontrado nesta árvore.")
	}
	return p.viewport.View()
}
