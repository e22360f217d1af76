package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm2evm/engine"
	"github.com/wippyai/wasm2evm/runtime"
	"github.com/wippyai/wasm2evm/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	instance *runtime.Instance
	opts     options
	result   string
	exports  []runtime.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
	stateShowListing
)

func newInteractiveModel(o options) *interactiveModel {
	return &interactiveModel{opts: o, state: stateSelectFunc}
}

type loadedMsg struct {
	err  error
	rt   *runtime.Runtime
	inst *runtime.Instance
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	data, err := os.ReadFile(m.opts.wasmFile)
	if err != nil {
		return loadedMsg{err: err}
	}
	rt, err := runtime.New(m.opts.runtimeOptions()...)
	if err != nil {
		return loadedMsg{err: err}
	}
	inst, err := rt.Instantiate(ctx, data)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}
	return loadedMsg{rt: rt, inst: inst}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == stateInputArgs && msg.String() == "q" {
				break
			}
			if m.rt != nil {
				m.rt.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.exports) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult, stateShowListing:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "d":
			if m.state == stateSelectFunc && len(m.exports) > 0 {
				m.result, m.err = m.listing(m.exports[m.selected].Name)
				m.state = stateShowListing
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
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult, stateShowListing:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rt = msg.rt
		m.instance = msg.inst
		m.exports = msg.inst.Exports()

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

func (m *interactiveModel) prepareInputs() {
	exp := m.exports[m.selected]
	m.inputs = make([]textinput.Model, len(exp.Signature.Params))
	for i, p := range exp.Signature.Params {
		ti := textinput.New()
		ti.Placeholder = p.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	if m.instance == nil {
		return callResultMsg{err: fmt.Errorf("module not loaded")}
	}
	exp := m.exports[m.selected]
	args := make([]runtime.Value, len(m.inputs))
	for i, input := range m.inputs {
		v, err := parseValue(input.Value(), exp.Signature.Params[i])
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	res, err := m.instance.Invoke(context.Background(), exp.Name, args...)
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: describe(res, exp.Signature)}
}

func describe(res *engine.Result, sig wasm.FuncType) string {
	var b strings.Builder
	switch res.Status {
	case engine.StatusSuccess:
		if out := formatResult(res.U64(), sig); out != "" {
			b.WriteString(out)
		} else {
			b.WriteString("(no result)")
		}
	case engine.StatusReverted:
		b.WriteString("trap: " + res.RevertReason)
	default:
		b.WriteString(res.String())
	}
	fmt.Fprintf(&b, "\ngas used: %d", res.GasUsed)
	return b.String()
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult && m.state != stateShowListing {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.instance == nil {
		return "Compiling module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasm2evm"))
	b.WriteString(" ")
	b.WriteString(m.opts.wasmFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.exports) == 0 {
			b.WriteString("The module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, exp := range m.exports {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatExport(exp)))
			} else {
				b.WriteString("  " + m.formatExport(exp))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • d disassemble • q quit"))

	case stateInputArgs:
		exp := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(exp.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(exp.Signature.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		exp := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(exp.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))

	case stateShowListing:
		exp := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Code of %s:\n\n", funcStyle.Render(exp.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.result)
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	return b.String()
}

// listing renders the compiled code of an export without its header.
func (m *interactiveModel) listing(name string) (string, error) {
	var b strings.Builder
	if err := printListing(&b, m.instance, name); err != nil {
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	return strings.Join(lines[1:], "\n") + "\n", nil
}

func (m *interactiveModel) formatExport(exp runtime.Export) string {
	return funcStyle.Render(exp.Name) + typeStyle.Render(exp.Signature.String()) +
		helpStyle.Render("  "+exp.Address.Hex())
}

func runInteractive(o options) error {
	p := tea.NewProgram(newInteractiveModel(o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
