package main

import (
	"context"
	"fmt"

	"arvore/cmd/arvore/ui"
	"arvore/internal/auth"
	"arvore/internal/config"
	"arvore/internal/logging"
	"arvore/internal/router"
	"arvore/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// runInteractive starts the TUI at route.
func runInteractive(ctx context.Context, o *options, route string) error {
	e, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	deps := &ui.Deps{
		Auth:   e.auth,
		Guard:  auth.NewGuard(e.state),
		Router: router.Default(),
		People: e.client,
		Styles: ui.NewStyles(ui.ThemeFor(e.cfg.UI.Theme)),
	}
	app := ui.NewApp(deps, route)
	e.auth.SetNavigator(app.Navigator())
	e.client.SetUnauthorizedHandler(app.UnauthorizedHandler())
	defer app.WatchAuth()()

	if e.cfg.Session.Watch && e.cfg.Session.Backend != config.BackendMemory {
		w, err := session.NewWatcher(e.cfg.Session.Path, func() { app.Post(ui.SessionChangedMsg{}) })
		if err != nil {
			logging.Get(logging.CategorySession).Warn("session watcher unavailable: %v", err)
		} else if err := w.Start(ctx); err != nil {
			logging.Get(logging.CategorySession).Warn("session watcher failed to start: %v", err)
		} else {
			defer w.Stop()
		}
	}

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}
