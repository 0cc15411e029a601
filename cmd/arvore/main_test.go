package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"arvore/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory family-tree server for one user.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	persons map[int]*api.Person
	patches []map[string]string
}

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	f := &fakeAPI{nextID: 3, persons: map[int]*api.Person{
		1: {ID: api.Int(1), Nome: "José Antônio", Genero: "M", LocalNascimento: api.String("Ouro Preto"), StatusVida: "Falecido(a)"},
		2: {ID: api.Int(2), Nome: "Ana", Genero: "F", Pai: api.Int(1), StatusVida: "Vivo(a)"},
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/", func(w http.ResponseWriter, r *http.Request) {
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "ana" || creds.Password != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"non_field_errors": []string{"Credenciais inválidas."}})
			return
		}
		writeJSON(w, http.StatusOK, api.AuthResponse{Token: "tok-ana", UserID: 2, Username: "ana"})
	})
	mux.HandleFunc("GET /api/pessoas/", f.authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]api.Person, 0, len(f.persons))
		for id := 1; id < f.nextID; id++ {
			if p, ok := f.persons[id]; ok {
				out = append(out, *p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /api/pessoas/", f.authed(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f.mu.Lock()
		defer f.mu.Unlock()
		p := &api.Person{ID: api.Int(f.nextID), Nome: r.FormValue("nome"), Genero: r.FormValue("genero"), StatusVida: r.FormValue("status_vida")}
		f.persons[f.nextID] = p
		f.nextID++
		writeJSON(w, http.StatusCreated, p)
	}))
	mux.HandleFunc("GET /api/pessoas/{id}/", f.withPerson(func(w http.ResponseWriter, r *http.Request, p *api.Person) {
		writeJSON(w, http.StatusOK, p)
	}))
	mux.HandleFunc("PATCH /api/pessoas/{id}/", f.withPerson(func(w http.ResponseWriter, r *http.Request, p *api.Person) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f.patches = append(f.patches, fields)
		if v, ok := fields["local_nascimento"]; ok {
			p.LocalNascimento = api.String(v)
		}
		writeJSON(w, http.StatusOK, p)
	}))
	mux.HandleFunc("DELETE /api/pessoas/{id}/", f.withPerson(func(w http.ResponseWriter, r *http.Request, p *api.Person) {
		delete(f.persons, p.PersonID())
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET /api/pessoas/{id}/arvore/", f.withPerson(func(w http.ResponseWriter, r *http.Request, p *api.Person) {
		father := f.persons[1]
		writeJSON(w, http.StatusOK, api.ArvoreResponse{
			RootPerson: p,
			Persons:    []api.Person{*father, *p},
			TreeLevels: []api.TreeLevel{
				{Level: 1, GroupedNodes: []api.NodeGroup{{GroupKey: "g1", GroupType: api.GroupSolo, Nodes: []api.Person{*father}}}},
				{Level: 2, GroupedNodes: []api.NodeGroup{{GroupKey: "g2", GroupType: api.GroupSolo, Nodes: []api.Person{{
					ID: p.ID, Nome: p.Nome, Genero: p.Genero, IsRootDisplayNode: true, Relacao: "Você",
				}}}}},
			},
			RegioesFamiliares: []api.Region{{Regiao: "MG", Count: 2}},
		})
	}))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeAPI) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tok-ana" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token inválido."})
			return
		}
		h(w, r)
	}
}

func (f *fakeAPI) withPerson(h func(http.ResponseWriter, *http.Request, *api.Person)) http.HandlerFunc {
	return f.authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		f.mu.Lock()
		defer f.mu.Unlock()
		p, ok := f.persons[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Não encontrado."})
			return
		}
		h(w, r, p)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// cli runs arvore commands against one config and session file.
type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T, apiURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`api:
  base_url: %s/api
session:
  backend: file
  path: %s
  watch: false
logging:
  dir: %s
`, apiURL, filepath.Join(dir, "session.json"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	for _, k := range []string{"ARVORE_API_URL", "ARVORE_SESSION_BACKEND", "ARVORE_SESSION_PATH", "ARVORE_DEBUG"} {
		t.Setenv(k, "")
	}
	return &cli{t: t, config: path}
}

func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "arvore %s", strings.Join(args, " "))
	return out
}

func TestCLISessionRoundTrip(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)

	out := c.mustRun("status")
	assert.Contains(t, out, "não autenticado")
	assert.Contains(t, out, srv.URL+"/api/")

	_, err := c.run("", "people", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arvore login")

	_, err = c.run("errada\n", "login", "ana")
	require.Error(t, err)

	out, err = c.run("secret1\n", "login", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Bem-vindo(a), ana!")

	// A new process picks the session up from the file.
	out = c.mustRun("status")
	assert.Contains(t, out, "Usuário: ana (pessoa 2)")

	out = c.mustRun("logout")
	assert.Contains(t, out, "Sessão encerrada.")
	assert.Contains(t, c.mustRun("status"), "não autenticado")
}

func TestCLIPeople(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)
	c.mustRun("login", "ana", "-p", "secret1")

	t.Run("list marks me and filters without accents", func(t *testing.T) {
		out := c.mustRun("people", "list")
		assert.Contains(t, out, "José Antônio")
		assert.Contains(t, out, "Ana (eu)")

		out = c.mustRun("people", "list", "-f", "jose antonio")
		assert.Contains(t, out, "José Antônio")
		assert.NotContains(t, out, "Ana")

		out = c.mustRun("people", "list", "-f", "ninguém")
		assert.Contains(t, out, "Nenhuma pessoa encontrada.")
	})

	t.Run("json output", func(t *testing.T) {
		var persons []api.Person
		require.NoError(t, json.Unmarshal([]byte(c.mustRun("people", "list", "--json")), &persons))
		assert.Len(t, persons, 2)

		var p api.Person
		require.NoError(t, json.Unmarshal([]byte(c.mustRun("people", "get", "1")), &p))
		assert.Equal(t, "José Antônio", p.Nome)
	})

	t.Run("create validates before sending", func(t *testing.T) {
		_, err := c.run("", "people", "create", "--nome", "Maria")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "genero")

		out := c.mustRun("people", "create", "--nome", "Maria", "--genero", "F")
		assert.Contains(t, out, "Pessoa criada com sucesso! (id 3)")
	})

	t.Run("update sends only the given flags", func(t *testing.T) {
		out := c.mustRun("people", "update", "1", "--local", "")
		assert.Contains(t, out, "Pessoa atualizada com sucesso!")

		var p api.Person
		require.NoError(t, json.Unmarshal([]byte(c.mustRun("people", "get", "1")), &p))
		require.NotNil(t, p.LocalNascimento)
		assert.Equal(t, "", *p.LocalNascimento)

		_, err := c.run("", "people", "update", "1", "--nome", " ")
		require.Error(t, err)
	})

	t.Run("delete and missing ids", func(t *testing.T) {
		out := c.mustRun("people", "delete", "3")
		assert.Contains(t, out, "'Maria' excluído(a) com sucesso.")

		_, err := c.run("", "people", "get", "3")
		require.Error(t, err)
		_, err = c.run("", "people", "get", "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id inválido")
	})
}

func TestCLITree(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)
	c.mustRun("login", "ana", "-p", "secret1")

	out := c.mustRun("tree", "minha")
	assert.Contains(t, out, "Árvore de Ana")
	assert.Contains(t, out, "Geração 1\n  José Antônio [1]")
	assert.Contains(t, out, "★ Ana [2] (Você)")
	assert.Contains(t, out, "Regiões da família: MG (2)")

	out = c.mustRun("people", "set-me", "1")
	assert.Contains(t, out, "'José Antônio' definido(a) como você.")
	assert.Contains(t, c.mustRun("tree", "minha"), "Árvore de José Antônio")

	_, err := c.run("", "tree", "99")
	require.Error(t, err)
}

func TestCLIFlagOverridesInvalidConfigURL(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)
	data, err := os.ReadFile(c.config)
	require.NoError(t, err)
	broken := strings.Replace(string(data), srv.URL+"/api", "not a url", 1)
	require.NoError(t, os.WriteFile(c.config, []byte(broken), 0o600))

	_, err = c.run("", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api.base_url")

	out := c.mustRun("--api-url", srv.URL+"/api", "status")
	assert.Contains(t, out, srv.URL+"/api/")
}

func TestCLIConfigInit(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)

	_, err := c.run("", "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = c.run("", "--ephemeral", "config", "init", "--force")
	require.Error(t, err)

	out := c.mustRun("--api-url", "http://127.0.0.1:9/outra", "config", "init", "--force")
	assert.Contains(t, out, "Configuração gravada em "+c.config)

	// Later runs pick the saved value up without the flag.
	out = c.mustRun("status")
	assert.Contains(t, out, "http://127.0.0.1:9/outra/")
	assert.Contains(t, out, "Sessão:  file "+filepath.Join(filepath.Dir(c.config), "session.json"))
}

func TestCLIRejectedTokenLogsOut(t *testing.T) {
	srv := newFakeAPI(t)
	c := newCLI(t, srv.URL)

	// A stale session written by an earlier run.
	cfgDir := filepath.Dir(c.config)
	stale := `{"version":1,"values":{"authToken":"old","userId":"2","username":"ana"}}`
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, "session.json"), []byte(stale), 0o600))
	assert.Contains(t, c.mustRun("status"), "Usuário: ana")

	_, err := c.run("", "people", "list")
	require.Error(t, err)
	assert.Contains(t, c.mustRun("status"), "não autenticado")
}
