package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sim82/squirrel-go/bytecode"
	"github.com/sim82/squirrel-go/instr"
	"github.com/sim82/squirrel-go/value"
	"github.com/sim82/squirrel-go/vm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	regStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	instrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFA98")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type debugModel struct {
	filename string
	ex       *vm.Executor
	err      error
	result   *value.Value
	done     bool

	// breakpoint is an instruction pointer (within the current function) at
	// which "continue" stops, or -1 if none is set.
	breakpoint int
	settingBP  bool
	bpInput    textinput.Model
}

type loadedMsg struct {
	ex  *vm.Executor
	err error
}

type steppedMsg struct {
	done   bool
	result value.Value
	err    error
}

func newDebugModel(filename string) *debugModel {
	ti := textinput.New()
	ti.Placeholder = "instruction pointer"
	ti.Prompt = "break at ip: "
	ti.Width = 10
	return &debugModel{filename: filename, breakpoint: -1, bpInput: ti}
}

func (m *debugModel) Init() tea.Cmd {
	return m.load
}

func (m *debugModel) load() tea.Msg {
	f, err := os.Open(m.filename)
	if err != nil {
		return loadedMsg{err: fmt.Errorf("open %s: %w", m.filename, err)}
	}
	defer f.Close()

	closure, err := bytecode.Load(f)
	if err != nil {
		return loadedMsg{err: fmt.Errorf("load: %w", err)}
	}

	ex := vm.New()
	registerNatives(ex)

	if err := ex.Stack().Push(closure); err != nil {
		return loadedMsg{err: err}
	}
	if err := ex.PushRootTable(); err != nil {
		return loadedMsg{err: err}
	}
	if err := ex.Call(1); err != nil {
		return loadedMsg{err: fmt.Errorf("call: %w", err)}
	}

	return loadedMsg{ex: ex}
}

func (m *debugModel) step() tea.Msg {
	done, ret, err := m.ex.Step()
	return steppedMsg{done: done, result: ret, err: err}
}

// runMany steps until the executor leaves its root frame, errors, hits the
// configured breakpoint ip, or reaches stepLimit iterations — a bound on
// "continue" so a runaway script (or one missing a terminating condition)
// can't hang the TUI.
func (m *debugModel) runMany() tea.Msg {
	const stepLimit = 1_000_000
	for i := 0; i < stepLimit; i++ {
		done, ret, err := m.ex.Step()
		if err != nil || done {
			return steppedMsg{done: done, result: ret, err: err}
		}
		if m.breakpoint >= 0 {
			if ci := m.ex.CurrentCallInfo(); ci != nil && ci.IP == m.breakpoint {
				return steppedMsg{}
			}
		}
	}
	return steppedMsg{err: fmt.Errorf("continue: exceeded %d steps without returning", stepLimit)}
}

func (m *debugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.settingBP {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			switch msg.String() {
			case "esc":
				m.settingBP = false
				return m, nil
			case "enter":
				if ip, err := strconv.Atoi(m.bpInput.Value()); err == nil {
					m.breakpoint = ip
				}
				m.settingBP = false
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.bpInput, cmd = m.bpInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "n", "enter":
			if m.ex != nil && !m.done && m.err == nil {
				return m, m.step
			}

		case "c":
			if m.ex != nil && !m.done && m.err == nil {
				return m, m.runMany
			}

		case "b":
			if m.ex != nil && !m.done && m.err == nil {
				m.settingBP = true
				m.bpInput.SetValue("")
				m.bpInput.Focus()
				return m, nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ex = msg.ex

	case steppedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.done {
			m.done = true
			r := msg.result
			m.result = &r
		}
	}
	return m, nil
}

func (m *debugModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Squirrel step-debugger"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	if m.ex == nil {
		b.WriteString("Loading...")
		return b.String()
	}

	if m.done {
		b.WriteString(fmt.Sprintf("Finished. Result: %s\n\n", resultStyle.Render(m.result.Display())))
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	ci := m.ex.CurrentCallInfo()
	if ci != nil {
		fp := ci.Closure.AsClosure().FuncProto.AsFuncProto()
		b.WriteString(fmt.Sprintf("%s  ip=%d  line=%d  depth=%d\n\n",
			funcStyle.Render(fp.DisplayName()), ci.IP, fp.LineAt(ci.IP), m.ex.CallDepth()))

		if ci.IP >= 0 && ci.IP < len(fp.Instructions) {
			in := fp.Instructions[ci.IP]
			b.WriteString(instrStyle.Render(formatInstruction(in)))
			b.WriteString("\n\n")
		}

		fr := m.ex.Stack().Frame()
		b.WriteString("registers:\n")
		for i := 0; i < fr.Top-fr.Base; i++ {
			v := m.ex.Stack().Value(i)
			b.WriteString(regStyle.Render(fmt.Sprintf("  R%d = %s\n", i, v.Display())))
		}
		b.WriteString("\n")
	}

	if m.settingBP {
		b.WriteString(m.bpInput.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter set • esc cancel"))
		return b.String()
	}

	if m.breakpoint >= 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("breakpoint at ip=%d\n", m.breakpoint)))
	}
	b.WriteString(helpStyle.Render("n/enter step • c continue • b set breakpoint • q quit"))
	return b.String()
}

func formatInstruction(in instr.Instruction) string {
	return fmt.Sprintf("%s  arg0=%d arg1=%d arg2=%d arg3=%d", in.Opcode, in.Arg0, in.Arg1, in.Arg2, in.Arg3)
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newDebugModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
