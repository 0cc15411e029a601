// Package router maps navigation paths to pages.
//
// Literal segments always win over parameters, so /pessoas/arvore/minha is
// never read as a tree for the id "minha", whatever order routes are added in.
package router

import (
	"strings"

	"arvore/internal/logging"
)

// Page names.
const (
	PageHome     = "home"
	PageLogin    = "login"
	PageRegister = "register"
	PageList     = "lista-pessoas"
	PageDetail   = "detalhes-pessoa"
	PageCreate   = "criar-pessoa"
	PageTree     = "arvore"
	PageMyTree   = "arvore-minha"
)

// Canonical paths.
const (
	HomePath     = "/home"
	LoginPath    = "/login"
	RegisterPath = "/register"
	ListPath     = "/pessoas/lista-pessoas"
	CreatePath   = "/pessoas/criar-pessoa"
	MyTreePath   = "/pessoas/arvore/minha"
)

// DetailPath returns the edit path of a person.
func DetailPath(id string) string { return "/pessoas/detalhes-pessoa/" + id }

// TreePath returns the tree path rooted at a person.
func TreePath(id string) string { return "/pessoas/arvore/" + id }

// Route is one entry of the table.
type Route struct {
	Pattern   string
	Page      string
	Protected bool
	// RedirectTo, when set, makes the route an alias.
	RedirectTo string
}

// Match is a resolved navigation.
type Match struct {
	Path      string
	Page      string
	Params    map[string]string
	Protected bool
}

// Router resolves paths against a route table.
type Router struct {
	routes   []Route
	fallback string
}

// New builds a router. Paths that match nothing redirect to fallback.
func New(fallback string, routes ...Route) *Router {
	return &Router{routes: routes, fallback: fallback}
}

// Default returns the application's route table.
func Default() *Router {
	return New(HomePath,
		Route{Pattern: "/", RedirectTo: HomePath},
		Route{Pattern: HomePath, Page: PageHome},
		Route{Pattern: LoginPath, Page: PageLogin},
		Route{Pattern: RegisterPath, Page: PageRegister},
		Route{Pattern: "/pessoas", RedirectTo: ListPath},
		Route{Pattern: ListPath, Page: PageList, Protected: true},
		Route{Pattern: "/pessoas/detalhes-pessoa/:id", Page: PageDetail, Protected: true},
		Route{Pattern: CreatePath, Page: PageCreate, Protected: true},
		Route{Pattern: "/pessoas/arvore/:id", Page: PageTree, Protected: true},
		Route{Pattern: MyTreePath, Page: PageMyTree, Protected: true},
	)
}

// Resolve finds the page for path, following redirects.
func (r *Router) Resolve(path string) Match {
	path = clean(path)
	for hops := 0; hops < 4; hops++ {
		route, params, ok := r.lookup(path)
		if !ok {
			logging.RouterDebug("no route for %s, redirecting to %s", path, r.fallback)
			path = r.fallback
			continue
		}
		if route.RedirectTo != "" {
			logging.RouterDebug("%s redirects to %s", path, route.RedirectTo)
			path = route.RedirectTo
			continue
		}
		return Match{Path: path, Page: route.Page, Params: params, Protected: route.Protected}
	}
	return Match{Path: r.fallback}
}

// lookup prefers the candidate with the most literal segments.
func (r *Router) lookup(path string) (Route, map[string]string, bool) {
	segs := split(path)
	var best Route
	var bestParams map[string]string
	bestScore := -1
	for _, route := range r.routes {
		params, score, ok := match(split(route.Pattern), segs)
		if ok && score > bestScore {
			best, bestParams, bestScore = route, params, score
		}
	}
	return best, bestParams, bestScore >= 0
}

// match reports whether pattern matches segs and how many segments matched
// literally.
func match(pattern, segs []string) (map[string]string, int, bool) {
	if len(pattern) != len(segs) {
		return nil, 0, false
	}
	var params map[string]string
	literal := 0
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, 0, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, 0, false
		}
		literal++
	}
	return params, literal, true
}

func clean(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
