package ui

import (
	"context"
	"testing"
	"time"

	"arvore/internal/api"
	"arvore/internal/router"
	"arvore/internal/session"
	"arvore/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, people People) (*App, *Deps) {
	t.Helper()
	deps := newTestDeps(t, people)
	app := NewApp(deps, "")
	deps.Auth.SetNavigator(app.Navigator())
	return app, deps
}

func TestAppGuardRedirect(t *testing.T) {
	app, _ := newTestApp(t, newFakePeople())

	msgs := collect(app.open(router.ListPath))
	assert.Equal(t, router.LoginPath, app.Path())
	_, isLogin := app.Page().(*LoginPage)
	assert.True(t, isLogin)

	require.Len(t, notices(msgs), 1)
	n := notices(msgs)[0]
	assert.Equal(t, "Acesso Negado", n.Header)
	assert.True(t, n.Sticky)
}

func TestAppOpensProtectedPageWhenLoggedIn(t *testing.T) {
	app, deps := newTestApp(t, newFakePeople())
	loginAs(t, deps)

	app.Update(NavigateMsg{Path: "/pessoas/detalhes-pessoa/5"})
	assert.Equal(t, "/pessoas/detalhes-pessoa/5", app.Path())
	_, isDetail := app.Page().(*DetailPage)
	assert.True(t, isDetail)

	app.Update(NavigateMsg{Path: "/nada"})
	assert.Equal(t, router.HomePath, app.Path())
}

func TestAppDropsLateResults(t *testing.T) {
	app, deps := newTestApp(t, newFakePeople(person(1, "José", "M")))
	loginAs(t, deps)

	app.Update(NavigateMsg{Path: router.ListPath})
	list := app.Page().(*ListPage)
	stale := app.pageID

	app.Update(NavigateMsg{Path: router.ListPath})
	fresh := app.Page().(*ListPage)
	require.NotSame(t, list, fresh)

	app.Update(pageMsg{page: stale, msg: listLoadedMsg{persons: []api.Person{person(1, "José", "M")}}})
	assert.False(t, fresh.loaded, "result of the previous page is dropped")

	app.Update(pageMsg{page: app.pageID, msg: listLoadedMsg{persons: []api.Person{person(1, "José", "M")}}})
	assert.True(t, fresh.loaded)
}

func TestAppNotices(t *testing.T) {
	app, _ := newTestApp(t, newFakePeople())
	app.Update(NavigateMsg{Path: router.HomePath})

	t.Run("toast expires", func(t *testing.T) {
		_, cmd := app.Update(NoticeMsg{Notice: Notice{Level: NoticeSuccess, Message: "ok"}})
		require.NotNil(t, cmd)
		require.NotNil(t, app.Notice())
		assert.Contains(t, app.View(), "ok")

		seq := app.noticeSeq
		app.Update(noticeExpiredMsg{seq: seq - 1})
		assert.NotNil(t, app.Notice(), "an older timer does not clear a newer toast")
		app.Update(noticeExpiredMsg{seq: seq})
		assert.Nil(t, app.Notice())
	})

	t.Run("alert waits for a key", func(t *testing.T) {
		_, cmd := app.Update(NoticeMsg{Notice: Notice{Level: NoticeError, Header: "Erro", Message: "falhou", Sticky: true}})
		assert.Nil(t, cmd)

		home := app.Page().(*HomePage)
		app.Update(key("down"))
		assert.Equal(t, 0, home.cursor, "keys are swallowed while an alert is shown")
		app.Update(noticeExpiredMsg{seq: app.noticeSeq})
		assert.NotNil(t, app.Notice())

		app.Update(key("enter"))
		assert.Nil(t, app.Notice())
	})
}

func TestAppUnauthorizedHandler(t *testing.T) {
	app, deps := newTestApp(t, newFakePeople())
	loginAs(t, deps)
	app.Update(NavigateMsg{Path: router.ListPath})

	app.UnauthorizedHandler()(context.Background())
	assert.False(t, deps.state().Authenticated())

	// The notice, then the navigation to /login, are queued for the loop.
	first := <-app.events
	n, ok := first.(NoticeMsg)
	require.True(t, ok)
	assert.Equal(t, api.MsgUnauthorized, n.Notice.Message)

	second := <-app.events
	assert.Equal(t, NavigateMsg{Path: router.LoginPath}, second)

	app.Update(eventMsg{msg: second})
	assert.Equal(t, router.LoginPath, app.Path())
}

func TestAppSessionChange(t *testing.T) {
	app, deps := newTestApp(t, newFakePeople())
	loginAs(t, deps)
	app.Update(NavigateMsg{Path: router.ListPath})

	// Another process logged out.
	app.Update(authCheckedMsg{ok: false})
	assert.Equal(t, router.LoginPath, app.Path())

	app.Update(authCheckedMsg{ok: false})
	assert.Equal(t, router.LoginPath, app.Path(), "public pages stay")
}

func TestAppWatchAuthLeavesProtectedPage(t *testing.T) {
	kv := store.NewMemoryStore()
	deps := newTestDepsWithStore(t, newFakePeople(), kv)
	app := NewApp(deps, "")
	loginAs(t, deps)
	app.Update(NavigateMsg{Path: router.ListPath})
	require.Equal(t, router.ListPath, app.Path())

	stop := app.WatchAuth()
	defer stop()

	// The token disappears and a re-check flips the signal.
	require.NoError(t, kv.Remove(context.Background(), session.KeyToken))
	ok, err := deps.Auth.CheckToken(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	select {
	case msg := <-app.events:
		app.Update(msg)
	case <-time.After(time.Second):
		t.Fatal("no auth change delivered")
	}
	assert.Equal(t, router.LoginPath, app.Path())
}

func TestAppQuit(t *testing.T) {
	app, _ := newTestApp(t, newFakePeople())
	app.Update(NavigateMsg{Path: router.HomePath})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestAppViewShowsUser(t *testing.T) {
	app, deps := newTestApp(t, newFakePeople())
	loginAs(t, deps)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	app.Update(NavigateMsg{Path: router.HomePath})
	view := app.View()
	assert.Contains(t, view, "Árvore · Início")
	assert.Contains(t, view, "ana")
}
