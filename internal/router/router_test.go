package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDefaultTable(t *testing.T) {
	r := Default()
	tests := []struct {
		path      string
		wantPath  string
		wantPage  string
		protected bool
		params    map[string]string
	}{
		{"/", HomePath, PageHome, false, nil},
		{"", HomePath, PageHome, false, nil},
		{"/home", HomePath, PageHome, false, nil},
		{"/login", LoginPath, PageLogin, false, nil},
		{"/register/", RegisterPath, PageRegister, false, nil},
		{"/nao-existe", HomePath, PageHome, false, nil},
		{"/pessoas", ListPath, PageList, true, nil},
		{"/pessoas/lista-pessoas", ListPath, PageList, true, nil},
		{"/pessoas/criar-pessoa", CreatePath, PageCreate, true, nil},
		{"/pessoas/detalhes-pessoa/12", "/pessoas/detalhes-pessoa/12", PageDetail, true, map[string]string{"id": "12"}},
		{"/pessoas/arvore/3", "/pessoas/arvore/3", PageTree, true, map[string]string{"id": "3"}},
		{"/pessoas/arvore/minha", MyTreePath, PageMyTree, true, nil},
		{"/pessoas/arvore/minha?x=1", MyTreePath, PageMyTree, true, nil},
		{"/pessoas/arvore", HomePath, PageHome, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := r.Resolve(tt.path)
			assert.Equal(t, tt.wantPath, m.Path)
			assert.Equal(t, tt.wantPage, m.Page)
			assert.Equal(t, tt.protected, m.Protected)
			assert.Equal(t, tt.params, m.Params)
		})
	}
}

func TestLiteralBeatsParamRegardlessOfOrder(t *testing.T) {
	r := New("/",
		Route{Pattern: "/a/:id", Page: "param"},
		Route{Pattern: "/a/fixed", Page: "literal"},
	)
	assert.Equal(t, "literal", r.Resolve("/a/fixed").Page)
	assert.Equal(t, "param", r.Resolve("/a/other").Page)
}

func TestRedirectLoopStops(t *testing.T) {
	r := New("/x",
		Route{Pattern: "/x", RedirectTo: "/y"},
		Route{Pattern: "/y", RedirectTo: "/x"},
	)
	m := r.Resolve("/x")
	assert.Equal(t, "/x", m.Path)
	assert.Equal(t, "", m.Page)
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/pessoas/detalhes-pessoa/4", DetailPath("4"))
	assert.Equal(t, "/pessoas/arvore/4", TreePath("4"))
}
