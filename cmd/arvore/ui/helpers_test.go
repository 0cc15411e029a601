package ui

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"arvore/internal/api"
	"arvore/internal/auth"
	"arvore/internal/router"
	"arvore/internal/session"
	"arvore/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

// fakeAuth accepts ana/secret1 and registers anyone.
type fakeAuth struct{}

func (fakeAuth) Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error) {
	if creds.Username != "ana" || creds.Password != "secret1" {
		return nil, &api.Error{Kind: api.KindServer, Status: 400,
			Message: "Impossível fazer login com as credenciais fornecidas."}
	}
	return &api.AuthResponse{Token: "tok-ana", UserID: 7, Username: "ana"}, nil
}

func (fakeAuth) Register(ctx context.Context, reg api.Registration) (*api.AuthResponse, error) {
	return &api.AuthResponse{Token: "tok-" + reg.Username, UserID: 8, Username: reg.Username}, nil
}

// fakePeople is an in-memory People.
type fakePeople struct {
	mu      sync.Mutex
	persons map[int]api.Person
	nextID  int

	listErr   error
	getErr    error
	saveErr   error
	deleteErr error
	tree      *api.ArvoreResponse
	treeErr   error

	created  []api.PersonInput
	updated  map[int]api.PersonInput
	treeHits int
}

func newFakePeople(persons ...api.Person) *fakePeople {
	f := &fakePeople{persons: make(map[int]api.Person), updated: make(map[int]api.PersonInput), nextID: 100}
	for _, p := range persons {
		f.persons[p.PersonID()] = p
	}
	return f
}

func (f *fakePeople) ListPersons(ctx context.Context) ([]api.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]api.Person, 0, len(f.persons))
	for _, p := range f.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID() < out[j].PersonID() })
	return out, nil
}

func (f *fakePeople) GetPerson(ctx context.Context, id int) (*api.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.persons[id]
	if !ok {
		return nil, &api.Error{Kind: api.KindServer, Status: 404, Message: "Não encontrado."}
	}
	return &p, nil
}

func (f *fakePeople) CreatePerson(ctx context.Context, in api.PersonInput) (*api.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.created = append(f.created, in)
	f.nextID++
	p := api.Person{ID: api.Int(f.nextID), Nome: *in.Nome, Genero: *in.Genero}
	f.persons[f.nextID] = p
	return &p, nil
}

func (f *fakePeople) UpdatePerson(ctx context.Context, id int, in api.PersonInput) (*api.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.updated[id] = in
	p := f.persons[id]
	p.Nome = *in.Nome
	f.persons[id] = p
	return &p, nil
}

func (f *fakePeople) DeletePerson(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.persons, id)
	return nil
}

func (f *fakePeople) GetTree(ctx context.Context, id int) (*api.ArvoreResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.treeHits++
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	if f.tree == nil {
		return nil, errors.New("no tree")
	}
	return f.tree, nil
}

func person(id int, nome, genero string) api.Person {
	return api.Person{ID: api.Int(id), Nome: nome, Genero: genero, StatusVida: "Vivo(a)"}
}

func newTestDeps(t *testing.T, people People) *Deps {
	t.Helper()
	return newTestDepsWithStore(t, people, store.NewMemoryStore())
}

func newTestDepsWithStore(t *testing.T, people People, kv store.KV) *Deps {
	t.Helper()
	sessions := session.NewStore(kv)
	state := auth.NewState()
	svc := auth.NewService(state, sessions, fakeAuth{}, nil)
	return &Deps{
		Auth:   svc,
		Guard:  auth.NewGuard(state),
		Router: router.Default(),
		People: people,
		Styles: NewStyles(LightTheme()),
	}
}

func loginAs(t *testing.T, deps *Deps) {
	t.Helper()
	_, err := deps.Auth.Login(context.Background(), api.Credentials{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
}

func testBase(deps *Deps) base {
	return base{id: 1, deps: deps, width: 100, height: 30}
}

// collect runs cmd and flattens batches. Spinner ticks and nil messages are
// dropped.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	var out []tea.Msg
	switch m := cmd().(type) {
	case nil, spinner.TickMsg:
	case tea.BatchMsg:
		for _, c := range m {
			out = append(out, collect(c)...)
		}
	default:
		out = append(out, m)
	}
	return out
}

// settle runs cmd, feeds page results back into p until none are left, and
// returns everything addressed to the app.
func settle(t *testing.T, p Page, cmd tea.Cmd) (Page, []tea.Msg) {
	t.Helper()
	var out []tea.Msg
	queue := collect(cmd)
	for i := 0; len(queue) > 0; i++ {
		require.Less(t, i, 50, "page never settled")
		msg := queue[0]
		queue = queue[1:]
		pm, ok := msg.(pageMsg)
		if !ok {
			out = append(out, msg)
			continue
		}
		var next tea.Cmd
		p, next = p.Update(pm.msg)
		queue = append(queue, collect(next)...)
	}
	return p, out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func notices(msgs []tea.Msg) []Notice {
	var out []Notice
	for _, m := range msgs {
		if n, ok := m.(NoticeMsg); ok {
			out = append(out, n.Notice)
		}
	}
	return out
}

func navigations(msgs []tea.Msg) []string {
	var out []string
	for _, m := range msgs {
		if n, ok := m.(NavigateMsg); ok {
			out = append(out, n.Path)
		}
	}
	return out
}
