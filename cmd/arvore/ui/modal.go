package ui

import (
	"strings"

	"arvore/internal/api"
	"arvore/internal/tree"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// PersonModal shows one person of a loaded tree over the tree page.
type PersonModal struct {
	Person *api.Person
	view   *tree.View
	width  int
	story  string
}

// NewPersonModal renders the personal story once, as markdown. Relatives
// are named through view.
func NewPersonModal(s Styles, view *tree.View, person *api.Person, width int) *PersonModal {
	m := &PersonModal{Person: person, view: view, width: width}
	m.story = renderStory(s, deref(person.HistoriaPessoal), width)
	return m
}

func renderStory(s Styles, story string, width int) string {
	story = strings.TrimSpace(story)
	if story == "" {
		return ""
	}
	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}
	style := glamour.WithStylePath("light")
	if s.Theme.IsDark {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		return story
	}
	out, err := r.Render(story)
	if err != nil {
		return story
	}
	return strings.TrimRight(out, "\n")
}

// Update reports whether the modal should close.
func (m *PersonModal) Update(msg tea.KeyMsg) (closed bool) {
	switch msg.String() {
	case "esc", "enter", "q":
		return true
	}
	return false
}

func (m *PersonModal) View(s Styles) string {
	p := m.Person
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(s.Label.Render(label))
		b.WriteString(s.Body.Render(value))
		b.WriteString("\n")
	}

	b.WriteString(s.Title.Foreground(GenderColor(p.Genero)).Render(p.Nome))
	b.WriteString("\n")
	row("Relação", p.Relacao)
	row("Gênero", generoLabel(p.Genero))
	row("Nascimento", joinNonEmpty(" · ", deref(p.DataNascimento), deref(p.LocalNascimento), deref(p.EstadoNascimento)))
	falecimento := deref(p.DataFalecimento)
	if p.DataFalecimentoIncerta {
		falecimento = joinNonEmpty(" ", falecimento, "(data incerta)")
	}
	row("Falecimento", falecimento)
	row("Idade", string(p.Idade))
	row("Situação", p.StatusVida)
	row("Pai", m.view.RelationName(p.Pai))
	row("Mãe", m.view.RelationName(p.Mae))
	row("Cônjuge", m.view.RelationName(p.Conjuge))
	if tree.HasChildren(p) {
		names := make([]string, 0, len(p.ChildrenIDs))
		for _, id := range p.ChildrenIDs {
			names = append(names, m.view.RelationName(api.Int(id)))
		}
		row("Filhos", strings.Join(names, ", "))
	}
	row("Foto", p.FotoURL)
	if m.story != "" {
		b.WriteString(s.RenderDivider(m.width - 8))
		b.WriteString("\n")
		b.WriteString(s.Bold.Render("História pessoal"))
		b.WriteString("\n")
		b.WriteString(m.story)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.KeyHelp("esc", "fechar", "e", "editar"))
	return s.Dialog.Render(b.String())
}

func generoLabel(g string) string {
	for _, o := range generoOptions {
		if o.value == g && g != "" {
			return o.label
		}
	}
	return g
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
