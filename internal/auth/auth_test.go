package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"arvore/internal/api"
	"arvore/internal/form"
	"arvore/internal/session"
	"arvore/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNav struct {
	mu     sync.Mutex
	routes []string
}

func (r *recordingNav) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *recordingNav) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

// fakeAPI accepts ana/secret1, registers anyone, and answers 403 on pessoas/.
func fakeAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "ana" || creds.Password != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"non_field_errors":["Impossível fazer login com as credenciais fornecidas."]}`))
			return
		}
		_, _ = w.Write([]byte(`{"token":"tok-ana","user_id":7,"username":"ana"}`))
	})
	mux.HandleFunc("/api/register/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var reg api.Registration
		_ = json.NewDecoder(r.Body).Decode(&reg)
		_ = json.NewEncoder(w).Encode(api.AuthResponse{Token: "tok-" + reg.Username, UserID: 8, Username: reg.Username})
	})
	mux.HandleFunc("/api/pessoas/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"Token inválido."}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

type fixture struct {
	state  *State
	store  *session.Store
	kv     store.KV
	client *api.Client
	svc    *Service
	nav    *recordingNav
	hits   *atomic.Int32
}

func newFixture(t *testing.T, kv store.KV) *fixture {
	t.Helper()
	srv, hits := fakeAPI(t)
	if kv == nil {
		kv = store.NewMemoryStore()
	}
	sessions := session.NewStore(kv)
	state := NewState()
	client := api.New(srv.URL+"/api/", api.WithTokenSource(state), api.WithTokenStore(sessions))
	nav := &recordingNav{}
	svc := NewService(state, sessions, client, nav)
	client.SetUnauthorizedHandler(svc.ForceLogout)
	return &fixture{state: state, store: sessions, kv: kv, client: client, svc: svc, nav: nav, hits: hits}
}

func storedKeys(t *testing.T, kv store.KV) map[string]string {
	t.Helper()
	out := map[string]string{}
	for _, k := range []string{session.KeyToken, session.KeyUserID, session.KeyUsername} {
		v, ok, err := kv.Get(context.Background(), k)
		require.NoError(t, err)
		if ok {
			out[k] = v
		}
	}
	return out
}

func TestLoginPersistsSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, api.Credentials{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "tok-ana", res.Token)

	assert.True(t, f.state.Authenticated())
	assert.Equal(t, "tok-ana", f.state.Token())
	id, ok := f.state.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, 7, id)
	assert.Equal(t, map[string]string{
		session.KeyToken:    "tok-ana",
		session.KeyUserID:   "7",
		session.KeyUsername: "ana",
	}, storedKeys(t, f.kv))
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, api.Credentials{Username: "ana", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Logout(ctx))

	assert.False(t, f.state.Authenticated())
	assert.Equal(t, "", f.state.Token())
	_, ok := f.state.CurrentUserID()
	assert.False(t, ok)
	assert.Empty(t, storedKeys(t, f.kv))
	assert.Equal(t, LoginRoute, f.nav.last())
}

func TestLogoutNavigatesWhenAlreadyLoggedOut(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.svc.Logout(context.Background()))
	assert.Equal(t, LoginRoute, f.nav.last())
}

func TestRejectedLoginLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, api.Credentials{Username: "ana", Password: "wrong-pass"})
	require.Error(t, err)
	assert.Equal(t, "Impossível fazer login com as credenciais fornecidas.", api.Message(err))
	assert.False(t, f.state.Authenticated())
	assert.Empty(t, storedKeys(t, f.kv))
	assert.Equal(t, "", f.nav.last(), "a rejected login is not a forced logout")
}

func TestLoginValidatesLocally(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Login(context.Background(), api.Credentials{Username: "ana", Password: "123"})
	require.Error(t, err)
	assert.Equal(t, form.MsgInvalidForm, form.Message(err))
	assert.Equal(t, int32(0), f.hits.Load())
}

func TestRegisterPasswordMismatchMakesNoRequest(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Register(context.Background(), api.Registration{Username: "bruno", Password: "secret1", Password2: "secret2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrPasswordMismatch)
	assert.Equal(t, int32(0), f.hits.Load())
	assert.False(t, f.state.Authenticated())
}

func TestRegisterLogsIn(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.svc.Register(context.Background(), api.Registration{Username: "bruno", Password: "secret1", Password2: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "tok-bruno", res.Token)
	assert.True(t, f.state.Authenticated())
	assert.Equal(t, "bruno", f.state.Username())
	assert.Equal(t, "tok-bruno", storedKeys(t, f.kv)[session.KeyToken])
}

func TestForbiddenForcesLogout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, api.Credentials{Username: "ana", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.client.ListPersons(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	assert.False(t, f.state.Authenticated())
	assert.Empty(t, storedKeys(t, f.kv))
	assert.Equal(t, LoginRoute, f.nav.last())
}

func TestNoTokenForcesLogout(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.client.ListPersons(context.Background())
	require.ErrorIs(t, err, api.ErrNoToken)
	assert.Equal(t, int32(0), f.hits.Load())
	assert.Equal(t, LoginRoute, f.nav.last())
}

func TestCheckToken(t *testing.T) {
	kv := store.NewMemoryStore()
	f := newFixture(t, kv)
	ctx := context.Background()

	ok, err := f.svc.CheckToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Another process logs in behind our back.
	require.NoError(t, session.NewStore(kv).Save(ctx, session.Session{Token: "t", UserID: 3, Username: "caio"}))
	ok, err = f.svc.CheckToken(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.state.Authenticated())
	assert.Equal(t, "caio", f.state.Username())

	// An incomplete session does not count.
	require.NoError(t, kv.Remove(ctx, session.KeyUsername))
	ok, err = f.svc.CheckToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.state.Authenticated())
}

func TestCheckTokenSeesLogoutFromAnotherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	f := newFixture(t, store.NewFileStore(path))
	other := session.NewStore(store.NewFileStore(path))
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, session.Session{Token: "tok-ana", UserID: 7, Username: "ana"}))
	ok, err := f.svc.CheckToken(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Clear(ctx))

	// A write from this process must not bring the cleared token back.
	require.NoError(t, f.svc.SetCurrentUserPerson(ctx, 42, "Ana Maria"))
	_, ok, err = store.NewFileStore(path).Get(ctx, session.KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CheckToken(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.state.Authenticated())
	assert.Equal(t, "", f.state.Token())
}

func TestSetCurrentUserPersonKeepsToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, api.Credentials{Username: "ana", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetCurrentUserPerson(ctx, 42, "Ana Maria"))

	assert.True(t, f.state.Authenticated())
	assert.Equal(t, "tok-ana", f.state.Token())
	id, _ := f.state.CurrentUserID()
	assert.Equal(t, 42, id)
	assert.Equal(t, map[string]string{
		session.KeyToken:    "tok-ana",
		session.KeyUserID:   "42",
		session.KeyUsername: "Ana Maria",
	}, storedKeys(t, f.kv))
}

// failingKV fails writes of one key.
type failingKV struct {
	store.KV
	failKey string
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, key, value)
}

func TestLoginStoreFailureRollsBack(t *testing.T) {
	kv := &failingKV{KV: store.NewMemoryStore(), failKey: session.KeyUsername}
	f := newFixture(t, kv)

	_, err := f.svc.Login(context.Background(), api.Credentials{Username: "ana", Password: "secret1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist session")
	assert.False(t, f.state.Authenticated())
	assert.Empty(t, storedKeys(t, kv))
}

func TestGuard(t *testing.T) {
	state := NewState()
	g := NewGuard(state)

	d := g.Check("/pessoas/lista-pessoas")
	assert.False(t, d.Allow)
	assert.Equal(t, "/login", d.Redirect)
	require.NotNil(t, d.Notice)
	assert.Equal(t, "Acesso Negado", d.Notice.Header)
	assert.Equal(t, "Você precisa estar logado para acessar esta página.", d.Notice.Message)

	state.login(session.Session{Token: "t", UserID: 1, Username: "a"})
	d = g.Check("/pessoas/lista-pessoas")
	assert.True(t, d.Allow)
	assert.Nil(t, d.Notice)

	// Decisions are not cached.
	state.logout()
	assert.False(t, g.Check("/pessoas/lista-pessoas").Allow)
}

func TestSubscribe(t *testing.T) {
	state := NewState()
	ch, cancel := state.Subscribe()

	state.login(session.Session{Token: "t", UserID: 1, Username: "a"})
	state.logout()
	// Only the latest value is kept.
	assert.False(t, <-ch)

	state.impersonate(2, "b")
	assert.False(t, <-ch)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Transitions after cancel do not panic.
	state.login(session.Session{Token: "t", UserID: 1, Username: "a"})
}

func TestSnapshot(t *testing.T) {
	state := NewState()
	state.login(session.Session{Token: "t", UserID: 1, Username: "a"})
	sess, ok := state.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, session.Session{Token: "t", UserID: 1, Username: "a"}, sess)
}
