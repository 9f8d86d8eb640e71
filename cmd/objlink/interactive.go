package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/objlink/objlink/bridge"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F87AF")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F87AF"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entryKind int

const (
	entryFunc entryKind = iota
	entryClass
)

type entry struct {
	name string
	kind entryKind
}

type modelState int

const (
	stateBrowse modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	bridge   *bridge.Bridge
	workerID string
	result   string
	entries  []entry
	fn       *bridge.Function
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(b *bridge.Bridge, workerID string) *interactiveModel {
	return &interactiveModel{
		bridge:   b,
		workerID: workerID,
		state:    stateBrowse,
	}
}

type loadedMsg struct {
	err     error
	entries []entry
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadEntries
}

func (m *interactiveModel) loadEntries() tea.Msg {
	funcs, err := m.bridge.ListFunctions()
	if err != nil {
		return loadedMsg{err: err}
	}
	classes, err := m.bridge.ListClasses()
	if err != nil {
		return loadedMsg{err: err}
	}

	entries := make([]entry, 0, len(funcs)+len(classes))
	for _, name := range funcs {
		entries = append(entries, entry{name: name, kind: entryFunc})
	}
	for _, name := range classes {
		entries = append(entries, entry{name: name, kind: entryClass})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	return loadedMsg{entries: entries}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break // "q" is a legitimate argument character
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.entries) == 0 {
					break
				}
				e := m.entries[m.selected]
				if e.kind == entryClass {
					return m, m.describeClass
				}
				if cmd := m.prepareInputs(); cmd != nil {
					return m, cmd
				}
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateBrowse
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateBrowse
				m.inputs = nil
			case stateShowResult:
				m.state = stateBrowse
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.entries = msg.entries

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// prepareInputs resolves the selected function and builds one text input per
// parameter. Returns a command only on failure.
func (m *interactiveModel) prepareInputs() tea.Cmd {
	fn, err := m.bridge.ResolveFunc(m.entries[m.selected].name)
	if err != nil {
		return func() tea.Msg { return callResultMsg{err: err} }
	}
	m.fn = fn

	m.inputs = make([]textinput.Model, len(fn.Params))
	for i, p := range fn.Params {
		ti := textinput.New()
		ti.Placeholder = paramTypeStr(p)
		ti.Prompt = p.Name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
	return nil
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.fn == nil {
		return callResultMsg{err: fmt.Errorf("no function selected")}
	}

	var args []any
	for _, input := range m.inputs {
		if input.Value() == "" {
			// Trailing optional parameters may be left blank.
			break
		}
		args = append(args, convertArg(input.Value()))
	}

	result, err := m.fn.Call(args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: formatValue(result)}
}

func (m *interactiveModel) describeClass() tea.Msg {
	cls, err := m.bridge.ResolveClass(m.entries[m.selected].name)
	if err != nil {
		return callResultMsg{err: err}
	}

	var b strings.Builder
	if cls.Interface {
		b.WriteString("interface ")
	} else if cls.Abstract {
		b.WriteString("abstract class ")
	} else {
		b.WriteString("class ")
	}
	b.WriteString(cls.Name)
	if cls.Parent != nil {
		b.WriteString(" extends " + cls.Parent.Name)
	}
	b.WriteString("\n")
	if cls.Doc != "" {
		b.WriteString("\n" + cls.Doc + "\n")
	}
	if len(cls.Methods) > 0 {
		b.WriteString("\n")
		for _, name := range sortedKeys(cls.Methods) {
			b.WriteString("  " + formatMethod(cls.Methods[name]) + "\n")
		}
	}
	return callResultMsg{result: b.String()}
}

// convertArg guesses the native type of a terminal-entered argument.
func convertArg(value string) any {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	if value == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func paramTypeStr(p bridge.ParamInfo) string {
	if p.Type == nil {
		return "mixed"
	}
	s := p.Type.Name
	if p.Type.Nullable {
		s = "?" + s
	}
	return s
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if len(m.entries) == 0 {
		return "Loading worker declarations..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("objlink"))
	b.WriteString(" ")
	b.WriteString(m.workerID)
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		b.WriteString("Select a function or class:\n\n")
		start, end := window(m.selected, len(m.entries), 20)
		for i := start; i < end; i++ {
			line := m.formatEntry(m.entries[i])
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateInputArgs:
		b.WriteString(fmt.Sprintf("Calling %s\n\n", nameStyle.Render(m.fn.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(kindStyle.Render(paramTypeStr(m.fn.Params[i])))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		b.WriteString("Result of " + nameStyle.Render(m.entries[m.selected].name) + ":\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatEntry(e entry) string {
	switch e.kind {
	case entryClass:
		return kindStyle.Render("class ") + nameStyle.Render(e.name)
	default:
		return kindStyle.Render("func  ") + nameStyle.Render(e.name)
	}
}

// window slices a long list around the selection so it fits on screen.
func window(selected, total, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := selected - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > total {
		end = total
		start = end - size
	}
	return start, end
}

func runInteractive(b *bridge.Bridge, workerID string) error {
	p := tea.NewProgram(newInteractiveModel(b, workerID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
