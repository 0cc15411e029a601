package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Confirm is a yes/no dialog guarding a destructive or identity-changing
// action. The zero value is inactive.
type Confirm struct {
	Header       string
	Message      string
	ConfirmLabel string

	active    bool
	onConfirm tea.Cmd
}

// Ask activates the dialog. onConfirm runs only if the user confirms.
func (c *Confirm) Ask(header, message, confirmLabel string, onConfirm tea.Cmd) {
	c.Header = header
	c.Message = message
	c.ConfirmLabel = confirmLabel
	c.onConfirm = onConfirm
	c.active = true
}

// Active reports whether the dialog is waiting for an answer.
func (c *Confirm) Active() bool { return c.active }

// Update handles a key while active. It returns onConfirm on y/enter and
// nothing on n/esc; other keys are swallowed.
func (c *Confirm) Update(msg tea.KeyMsg) tea.Cmd {
	if !c.active {
		return nil
	}
	switch msg.String() {
	case "y", "s", "enter":
		c.active = false
		cmd := c.onConfirm
		c.onConfirm = nil
		return cmd
	case "n", "esc":
		c.active = false
		c.onConfirm = nil
	}
	return nil
}

func (c *Confirm) View(s Styles) string {
	if !c.active {
		return ""
	}
	body := s.Bold.Render(c.Header) + "\n\n" + s.Body.Render(c.Message) + "\n\n" +
		s.KeyHelp("enter/s", c.ConfirmLabel, "esc/n", "Cancelar")
	return s.Dialog.Render(body)
}
