package auth

import "arvore/internal/logging"

// Notice is a user-facing alert.
type Notice struct {
	Header  string
	Message string
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allow    bool
	Redirect string
	Notice   *Notice
}

var accessDenied = Notice{
	Header:  "Acesso Negado",
	Message: "Você precisa estar logado para acessar esta página.",
}

// Guard gates protected routes on the authenticated signal.
type Guard struct {
	state *State
}

func NewGuard(state *State) *Guard {
	return &Guard{state: state}
}

// Check decides a single navigation to route. The signal is read once per
// call and nothing is cached between calls.
func (g *Guard) Check(route string) Decision {
	if g.state.Authenticated() {
		logging.AuthDebug("guard: allow %s", route)
		return Decision{Allow: true}
	}
	logging.AuthDebug("guard: deny %s, redirecting to %s", route, LoginRoute)
	n := accessDenied
	return Decision{Redirect: LoginRoute, Notice: &n}
}
