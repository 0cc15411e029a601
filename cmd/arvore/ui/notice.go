package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// NoticeLevel selects the color of a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

// ToastDuration is how long a non-sticky notice stays on screen.
const ToastDuration = 2 * time.Second

// Notice is an alert (Sticky, dismissed with a key) or a toast (expires).
type Notice struct {
	Level   NoticeLevel
	Header  string
	Message string
	Sticky  bool
}

// NoticeMsg asks the app to show a notice.
type NoticeMsg struct{ Notice Notice }

type noticeExpiredMsg struct{ seq int }

func notify(n Notice) tea.Cmd {
	return func() tea.Msg { return NoticeMsg{Notice: n} }
}

func toast(level NoticeLevel, msg string) tea.Cmd {
	return notify(Notice{Level: level, Message: msg})
}

func alert(header, msg string) tea.Cmd {
	return notify(Notice{Level: NoticeError, Header: header, Message: msg, Sticky: true})
}

func expireNotice(seq int) tea.Cmd {
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func (n Notice) render(s Styles) string {
	style := s.Info
	switch n.Level {
	case NoticeSuccess:
		style = s.Success
	case NoticeWarning:
		style = s.Warning
	case NoticeError:
		style = s.Error
	}
	text := n.Message
	if n.Header != "" {
		text = n.Header + ": " + text
	}
	out := style.Render(text)
	if n.Sticky {
		out = s.Dialog.BorderForeground(style.GetForeground()).Render(
			out + "\n\n" + s.KeyHelp("enter", "OK"))
	}
	return out
}
