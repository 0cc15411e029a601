package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// option is one entry of a selector field.
type option struct {
	value string
	label string
}

// field is one labeled text input, or a selector when options is set.
type field struct {
	key   string
	label string
	input textinput.Model
	err   string

	options  []option
	selected int
}

func newField(s Styles, key, label, placeholder string, secret bool) *field {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "│ "
	ti.CharLimit = 256
	ti.Width = 40
	ti.PromptStyle = s.Prompt
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return &field{key: key, label: label, input: ti}
}

// newChoice creates a selector cycled with ←/→.
func newChoice(key, label string, options []option) *field {
	return &field{key: key, label: label, options: options}
}

func (f *field) choice() bool { return f.options != nil }

func (f *field) value() string {
	if f.choice() {
		if f.selected < 0 || f.selected >= len(f.options) {
			return ""
		}
		return f.options[f.selected].value
	}
	return f.input.Value()
}

// setValue fills the input, or selects the matching option. An unknown
// option value selects the first option.
func (f *field) setValue(v string) {
	if !f.choice() {
		f.input.SetValue(v)
		return
	}
	f.selected = 0
	for i, o := range f.options {
		if o.value == v {
			f.selected = i
			return
		}
	}
}

// setOptions replaces the options, keeping the current value when it is
// still offered.
func (f *field) setOptions(options []option) {
	cur := f.value()
	f.options = options
	f.setValue(cur)
}

func (f *field) cycle(delta int) {
	if n := len(f.options); n > 0 {
		f.selected = (f.selected + delta + n) % n
	}
}

func (f *field) render() string {
	if !f.choice() {
		return f.input.View()
	}
	if len(f.options) == 0 {
		return "‹ ›"
	}
	return "‹ " + f.options[f.selected].label + " ›"
}

// fieldSet is an ordered group of inputs with one focused.
type fieldSet struct {
	fields []*field
	focus  int
}

func newFieldSet(fields ...*field) fieldSet {
	fs := fieldSet{fields: fields}
	fs.setFocus(0)
	return fs
}

func (fs *fieldSet) setFocus(i int) {
	if len(fs.fields) == 0 {
		return
	}
	fs.focus = (i + len(fs.fields)) % len(fs.fields)
	for j, f := range fs.fields {
		if f.choice() {
			continue
		}
		if j == fs.focus {
			f.input.Focus()
		} else {
			f.input.Blur()
		}
	}
}

func (fs *fieldSet) next() { fs.setFocus(fs.focus + 1) }

func (fs *fieldSet) prev() { fs.setFocus(fs.focus - 1) }

func (fs *fieldSet) last() bool { return fs.focus == len(fs.fields)-1 }

func (fs *fieldSet) get(key string) *field {
	for _, f := range fs.fields {
		if f.key == key {
			return f
		}
	}
	return nil
}

// setErrors replaces the inline error of every field.
func (fs *fieldSet) setErrors(byField map[string][]string) {
	for _, f := range fs.fields {
		f.err = strings.Join(byField[f.key], " ")
	}
}

func (fs *fieldSet) update(msg tea.Msg) tea.Cmd {
	if len(fs.fields) == 0 {
		return nil
	}
	f := fs.fields[fs.focus]
	if f.choice() {
		if k, ok := msg.(tea.KeyMsg); ok {
			switch k.String() {
			case "left", "h":
				f.cycle(-1)
			case "right", "l", " ":
				f.cycle(1)
			}
		}
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

func (fs *fieldSet) view(s Styles) string {
	var b strings.Builder
	for i, f := range fs.fields {
		label := s.Label.Render(f.label)
		if i == fs.focus {
			label = s.Label.Foreground(s.Theme.Accent).Render(f.label)
		}
		b.WriteString(label)
		if f.choice() && i == fs.focus {
			b.WriteString(s.Selected.Render(f.render()))
		} else {
			b.WriteString(f.render())
		}
		b.WriteString("\n")
		if f.err != "" {
			b.WriteString(s.Label.Render(""))
			b.WriteString(s.Error.Render(f.err))
			b.WriteString("\n")
		}
	}
	return b.String()
}
