package ui

import (
	"context"
	"strings"

	"arvore/internal/api"
	"arvore/internal/auth"
	"arvore/internal/logging"
	"arvore/internal/router"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// People is the part of the API client the pages use.
type People interface {
	ListPersons(ctx context.Context) ([]api.Person, error)
	GetPerson(ctx context.Context, id int) (*api.Person, error)
	CreatePerson(ctx context.Context, in api.PersonInput) (*api.Person, error)
	UpdatePerson(ctx context.Context, id int, in api.PersonInput) (*api.Person, error)
	DeletePerson(ctx context.Context, id int) error
	GetTree(ctx context.Context, id int) (*api.ArvoreResponse, error)
}

// Deps are the services shared by every page.
type Deps struct {
	Auth   *auth.Service
	Guard  *auth.Guard
	Router *router.Router
	People People
	Styles Styles
}

func (d *Deps) state() *auth.State { return d.Auth.State() }

// Page is one screen bound to a route.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	SetSize(width, height int)
	Title() string
	Help() string
}

// NavigateMsg asks the app to open a path.
type NavigateMsg struct{ Path string }

// SessionChangedMsg reports that the session store changed outside this
// process.
type SessionChangedMsg struct{}

// pageMsg carries the result of a page's async work. The app drops it when
// the page is no longer shown.
type pageMsg struct {
	page int
	msg  tea.Msg
}

type eventMsg struct{ msg tea.Msg }

type authCheckedMsg struct {
	ok  bool
	err error
}

type authChangedMsg struct{ authenticated bool }

func navigate(path string) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{Path: path} }
}

// base is embedded by every page.
type base struct {
	id     int
	deps   *Deps
	width  int
	height int
}

func (b *base) SetSize(width, height int) {
	b.width = width
	b.height = height
}

// async runs fn off the event loop and tags its result with the page id.
func (b *base) async(fn func(ctx context.Context) tea.Msg) tea.Cmd {
	id := b.id
	return func() tea.Msg {
		return pageMsg{page: id, msg: fn(context.Background())}
	}
}

func (b *base) styles() Styles { return b.deps.Styles }

// App is the root bubbletea model: it owns the current page, routes
// navigation through the guard, and shows notices.
type App struct {
	deps   *Deps
	events chan tea.Msg
	start  string

	page   Page
	pageID int
	match  router.Match

	notice    *Notice
	noticeSeq int

	width  int
	height int
}

// NewApp creates the app. start is the first path to open.
func NewApp(deps *Deps, start string) *App {
	if start == "" {
		start = router.HomePath
	}
	return &App{
		deps:   deps,
		events: make(chan tea.Msg, 16),
		start:  start,
		width:  80,
		height: 24,
	}
}

// Post delivers msg to the event loop from any goroutine. It never blocks;
// when the queue is full the message is dropped.
func (a *App) Post(msg tea.Msg) {
	select {
	case a.events <- msg:
	default:
		logging.Get(logging.CategoryUI).Warn("event queue full, dropping %T", msg)
	}
}

// Navigator routes auth-driven navigation into the app.
func (a *App) Navigator() auth.Navigator {
	return auth.NavigatorFunc(func(route string) { a.Post(NavigateMsg{Path: route}) })
}

// UnauthorizedHandler shows the session notice, then forces a logout.
func (a *App) UnauthorizedHandler() func(ctx context.Context) {
	return func(ctx context.Context) {
		a.Post(NoticeMsg{Notice: Notice{Level: NoticeError, Message: api.MsgUnauthorized}})
		a.deps.Auth.ForceLogout(ctx)
	}
}

// WatchAuth forwards every change of the authenticated signal to the event
// loop. The returned func stops forwarding.
func (a *App) WatchAuth() (stop func()) {
	ch, cancel := a.deps.state().Subscribe()
	go func() {
		for ok := range ch {
			a.Post(authChangedMsg{authenticated: ok})
		}
	}()
	return cancel
}

// Path returns the path of the page being shown.
func (a *App) Path() string { return a.match.Path }

// Page returns the page being shown.
func (a *App) Page() Page { return a.page }

// Notice returns the notice being shown, if any.
func (a *App) Notice() *Notice { return a.notice }

func (a *App) listen() tea.Cmd {
	return func() tea.Msg { return eventMsg{msg: <-a.events} }
}

func (a *App) checkToken() tea.Cmd {
	svc := a.deps.Auth
	return func() tea.Msg {
		ok, err := svc.CheckToken(context.Background())
		return authCheckedMsg{ok: ok, err: err}
	}
}

func (a *App) Init() tea.Cmd {
	logging.UI("app starting at %s", a.start)
	return tea.Batch(a.listen(), a.open(a.start))
}

// open resolves path, applies the guard, and replaces the current page.
func (a *App) open(path string) tea.Cmd {
	var cmds []tea.Cmd
	m := a.deps.Router.Resolve(path)
	if m.Protected {
		d := a.deps.Guard.Check(m.Path)
		if !d.Allow {
			if d.Notice != nil {
				cmds = append(cmds, alert(d.Notice.Header, d.Notice.Message))
			}
			m = a.deps.Router.Resolve(d.Redirect)
		}
	}

	a.pageID++
	a.match = m
	a.page = a.build(m)
	a.page.SetSize(a.width, a.contentHeight())
	logging.UI("open %s (page %d, %s)", m.Path, a.pageID, m.Page)
	cmds = append(cmds, a.page.Init())
	return tea.Batch(cmds...)
}

func (a *App) build(m router.Match) Page {
	b := base{id: a.pageID, deps: a.deps}
	switch m.Page {
	case router.PageLogin:
		return newLoginPage(b)
	case router.PageRegister:
		return newRegisterPage(b)
	case router.PageList:
		return newListPage(b)
	case router.PageCreate:
		return newDetailPage(b, "")
	case router.PageDetail:
		return newDetailPage(b, m.Params["id"])
	case router.PageTree:
		return newTreePage(b, m.Params["id"])
	case router.PageMyTree:
		return newTreePage(b, "")
	default:
		return newHomePage(b)
	}
}

func (a *App) contentHeight() int {
	h := a.height - 4
	if h < 5 {
		h = 5
	}
	return h
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		next, cmd := a.Update(msg.msg)
		return next, tea.Batch(cmd, a.listen())

	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		if a.page != nil {
			a.page.SetSize(a.width, a.contentHeight())
		}
		return a, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		if a.notice != nil && a.notice.Sticky {
			switch msg.String() {
			case "enter", "esc", " ":
				a.notice = nil
			}
			return a, nil
		}

	case NavigateMsg:
		return a, a.open(msg.Path)

	case NoticeMsg:
		n := msg.Notice
		a.notice = &n
		a.noticeSeq++
		logging.UIDebug("notice: %s", n.Message)
		if n.Sticky {
			return a, nil
		}
		return a, expireNotice(a.noticeSeq)

	case noticeExpiredMsg:
		if msg.seq == a.noticeSeq && a.notice != nil && !a.notice.Sticky {
			a.notice = nil
		}
		return a, nil

	case SessionChangedMsg:
		logging.UIDebug("session store changed on disk, re-checking token")
		return a, a.checkToken()

	case authChangedMsg:
		if !msg.authenticated && a.match.Protected {
			logging.UIDebug("signed out while on %s", a.match.Path)
			return a, a.open(router.LoginPath)
		}
		return a, nil

	case authCheckedMsg:
		if msg.err != nil {
			logging.Get(logging.CategoryUI).Warn("token check failed: %v", msg.err)
		}
		if !msg.ok && a.match.Protected {
			return a, a.open(router.LoginPath)
		}
		return a, nil

	case pageMsg:
		if msg.page != a.pageID {
			logging.UIDebug("dropping late %T for page %d (showing %d)", msg.msg, msg.page, a.pageID)
			return a, nil
		}
		var cmd tea.Cmd
		a.page, cmd = a.page.Update(msg.msg)
		return a, cmd
	}

	if a.page == nil {
		return a, nil
	}
	var cmd tea.Cmd
	a.page, cmd = a.page.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	s := a.deps.Styles
	if a.page == nil {
		return ""
	}
	header := s.Header.Render("Árvore · " + a.page.Title())
	if user := a.deps.state().Username(); user != "" && a.deps.state().Authenticated() {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", s.Badge.Render(user))
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(s.Content.Render(a.page.View()))
	b.WriteString("\n")
	if a.notice != nil {
		b.WriteString(a.notice.render(s))
		b.WriteString("\n")
	}
	b.WriteString(s.Footer.Render(a.page.Help() + s.Muted.Render(" · ") + s.KeyHelp("ctrl+c", "sair")))
	return b.String()
}
