package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"arvore/internal/api"
	"arvore/internal/form"
	"arvore/internal/logging"
	"arvore/internal/router"
	"arvore/internal/tree"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// Messages of the person form.
const (
	msgPersonLoadFailed = "Não foi possível carregar os dados da pessoa."
	msgOptionsFailed    = "Erro ao carregar opções de pais/mães."
	msgRequiredMissing  = "Por favor, preencha todos os campos obrigatórios."
)

var (
	generoOptions = []option{
		{"", "Selecione"},
		{"M", "Masculino"},
		{"F", "Feminino"},
	}
	statusVidaOptions = []option{
		{"Vivo(a)", "Vivo(a)"},
		{"Falecido(a)", "Falecido(a)"},
	}
)

type (
	detailLoadedMsg struct {
		person     *api.Person
		persons    []api.Person
		personErr  error
		optionsErr error
	}
	savedMsg struct {
		person *api.Person
		err    error
	}
)

// DetailPage creates a person, or edits one when opened with an id.
type DetailPage struct {
	base
	rawID    string
	personID int
	edit     bool

	fields  fieldSet
	spinner spinner.Model
	loading string
	saving  bool
}

func newDetailPage(b base, id string) *DetailPage {
	s := b.deps.Styles
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner

	p := &DetailPage{base: b, rawID: id, spinner: sp}
	if n, err := strconv.Atoi(id); err == nil && n > 0 {
		p.personID = n
		p.edit = true
	}

	status := newChoice("status_vida", "Situação *", statusVidaOptions)
	status.setValue(form.DefaultStatusVida)
	p.fields = newFieldSet(
		newField(s, "nome", "Nome *", "nome completo", false),
		newChoice("genero", "Gênero *", generoOptions),
		newField(s, "data_nascimento", "Nascimento", "AAAA-MM-DD", false),
		newField(s, "local_nascimento", "Local de nascimento", "cidade", false),
		newField(s, "estado_nascimento", "Estado", "UF", false),
		status,
		newField(s, "data_falecimento", "Falecimento", "AAAA-MM-DD", false),
		newChoice("pai", "Pai", parentOptions(nil, "M")),
		newChoice("mae", "Mãe", parentOptions(nil, "F")),
		newField(s, "historia_pessoal", "História pessoal", "markdown", false),
		newField(s, "foto", "Foto", "caminho de um arquivo local", false),
	)
	return p
}

// parentOptions lists the persons of one gender as selector options, after a
// "none" entry.
func parentOptions(persons []api.Person, gender string) []option {
	opts := []option{{"", "Nenhum(a)"}}
	for _, p := range tree.FilterByGender(persons, gender) {
		opts = append(opts, option{strconv.Itoa(p.PersonID()), p.Nome})
	}
	return opts
}

func (p *DetailPage) Title() string {
	if p.edit {
		return "Editar pessoa"
	}
	return "Nova pessoa"
}

func (p *DetailPage) Help() string {
	return p.styles().KeyHelp("tab", "próximo", "←/→", "escolher", "ctrl+s", "salvar", "esc", "voltar")
}

func (p *DetailPage) Init() tea.Cmd {
	people := p.deps.People
	if p.rawID != "" && !p.edit {
		logging.Get(logging.CategoryUI).Warn("detail opened with invalid id %q", p.rawID)
		return tea.Batch(alert("Erro", msgPersonLoadFailed), navigate(router.ListPath))
	}
	if !p.edit {
		return p.async(func(ctx context.Context) tea.Msg {
			persons, err := people.ListPersons(ctx)
			return detailLoadedMsg{persons: persons, optionsErr: err}
		})
	}

	p.loading = "Carregando pessoa..."
	id := p.personID
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		return loadPersonAndOptions(ctx, people, id)
	}))
}

// loadPersonAndOptions fetches the person and the selector options at the
// same time. A failed person load cancels the options request; a failed
// options load only degrades the selectors.
func loadPersonAndOptions(ctx context.Context, people People, id int) detailLoadedMsg {
	var out detailLoadedMsg
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		person, err := people.GetPerson(ctx, id)
		out.person = person
		return err
	})
	g.Go(func() error {
		persons, err := people.ListPersons(ctx)
		out.persons, out.optionsErr = persons, err
		return nil
	})
	out.personErr = g.Wait()
	if out.personErr != nil && errors.Is(out.optionsErr, context.Canceled) {
		out.optionsErr = nil
	}
	return out
}

func (p *DetailPage) apply(msg detailLoadedMsg) tea.Cmd {
	if p.edit && msg.personErr != nil {
		logging.Get(logging.CategoryUI).Warn("load person %d: %v", p.personID, msg.personErr)
		return tea.Batch(alert("Erro", msgPersonLoadFailed), navigate(router.ListPath))
	}

	var cmds []tea.Cmd
	if msg.optionsErr != nil {
		cmds = append(cmds, toast(NoticeError, msgOptionsFailed))
	}
	others := make([]api.Person, 0, len(msg.persons))
	for _, o := range msg.persons {
		if o.PersonID() != p.personID {
			others = append(others, o)
		}
	}
	p.fields.get("pai").setOptions(parentOptions(others, "M"))
	p.fields.get("mae").setOptions(parentOptions(others, "F"))

	if person := msg.person; person != nil {
		p.fill(person)
	}
	return tea.Batch(cmds...)
}

func (p *DetailPage) fill(person *api.Person) {
	set := func(key, v string) { p.fields.get(key).setValue(v) }
	set("nome", person.Nome)
	set("genero", person.Genero)
	set("data_nascimento", deref(person.DataNascimento))
	set("local_nascimento", deref(person.LocalNascimento))
	set("estado_nascimento", deref(person.EstadoNascimento))
	set("data_falecimento", deref(person.DataFalecimento))
	set("historia_pessoal", deref(person.HistoriaPessoal))
	if person.StatusVida != "" {
		set("status_vida", person.StatusVida)
	}
	set("pai", idString(person.Pai))
	set("mae", idString(person.Mae))
}

func idString(id *int) string {
	if id == nil || *id == 0 {
		return ""
	}
	return strconv.Itoa(*id)
}

// Input builds the request body from the form. Empty optional fields are
// left out of a create and sent as clears on an update.
func (p *DetailPage) Input() api.PersonInput {
	text := func(key string) *string {
		v := strings.TrimSpace(p.fields.get(key).value())
		if v == "" && !p.edit {
			return nil
		}
		return api.String(v)
	}
	link := func(key string) *int {
		v := p.fields.get(key).value()
		if v == "" {
			if p.edit {
				return api.Int(0)
			}
			return nil
		}
		n, _ := strconv.Atoi(v)
		return api.Int(n)
	}
	return api.PersonInput{
		Nome:             api.String(strings.TrimSpace(p.fields.get("nome").value())),
		Genero:           api.String(p.fields.get("genero").value()),
		StatusVida:       api.String(p.fields.get("status_vida").value()),
		DataNascimento:   text("data_nascimento"),
		LocalNascimento:  text("local_nascimento"),
		EstadoNascimento: text("estado_nascimento"),
		DataFalecimento:  text("data_falecimento"),
		HistoriaPessoal:  text("historia_pessoal"),
		Pai:              link("pai"),
		Mae:              link("mae"),
		FotoPath:         strings.TrimSpace(p.fields.get("foto").value()),
	}
}

func (p *DetailPage) submit() tea.Cmd {
	in := p.Input()
	if err := form.Person(*in.Nome, *in.Genero, *in.StatusVida); err != nil {
		p.fields.setErrors(formErrors(err))
		return toast(NoticeWarning, msgRequiredMissing)
	}
	p.fields.setErrors(nil)
	p.saving = true
	if p.edit {
		p.loading = "Atualizando pessoa..."
	} else {
		p.loading = "Criando pessoa..."
	}

	people, id, edit := p.deps.People, p.personID, p.edit
	return tea.Batch(p.spinner.Tick, p.async(func(ctx context.Context) tea.Msg {
		if edit {
			person, err := people.UpdatePerson(ctx, id, in)
			return savedMsg{person: person, err: err}
		}
		person, err := people.CreatePerson(ctx, in)
		return savedMsg{person: person, err: err}
	}))
}

func (p *DetailPage) Update(msg tea.Msg) (Page, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		p.loading = ""
		return p, p.apply(msg)

	case savedMsg:
		p.loading = ""
		p.saving = false
		if msg.err != nil {
			var apiErr *api.Error
			if errors.As(msg.err, &apiErr) {
				p.fields.setErrors(apiErr.Fields)
			}
			return p, toast(NoticeError, "Erro: "+api.Message(msg.err))
		}
		verb := "criada"
		if p.edit {
			verb = "atualizada"
		}
		return p, tea.Batch(
			toast(NoticeSuccess, fmt.Sprintf("Pessoa %s com sucesso!", verb)),
			navigate(router.ListPath),
		)

	case spinner.TickMsg:
		if p.loading == "" {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if p.loading != "" {
			if msg.String() == "esc" && !p.saving {
				return p, navigate(router.ListPath)
			}
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
		case "ctrl+s":
			return p, p.submit()
		case "esc":
			return p, navigate(router.ListPath)
		}
	}
	return p, p.fields.update(msg)
}

func (p *DetailPage) View() string {
	s := p.styles()
	out := s.Title.Render(p.Title()) + "\n"
	if p.loading != "" {
		out += p.spinner.View() + " " + p.loading + "\n\n"
	}
	out += p.fields.view(s)
	out += "\n" + s.Muted.Render("* campos obrigatórios")
	return out
}
