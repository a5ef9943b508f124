// Package tui implements the interactive prompt shown when docproc runs
// without arguments.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Action is what the user chose to do.
type Action string

const (
	ActionUpload Action = "upload"
	ActionFetch  Action = "fetch"
)

var actions = []struct {
	action Action
	label  string
}{
	{ActionUpload, "Upload an image and extract its data"},
	{ActionFetch, "Fetch stored documents"},
}

// Result holds the answers collected by the prompt.
type Result struct {
	UserID       string
	Action       Action
	ImagePath    string
	DocumentType string
	// Completed is false when the user cancelled.
	Completed bool
}

type step int

const (
	stepUser step = iota
	stepAction
	stepImage
	stepType
	stepDone
)

var (
	colorAccent = lipgloss.Color("#e91e63")
	colorMuted  = lipgloss.Color("#808080")
	colorError  = lipgloss.Color("#ff453a")

	titleStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	labelStyle  = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(colorAccent)
	helpStyle   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(colorError)
)

// Model is the bubbletea model for the prompt.
type Model struct {
	step   step
	input  textinput.Model
	cursor int
	result Result
	errMsg string
}

// NewModel returns a prompt positioned at the user id question.
func NewModel() Model {
	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50
	ti.Prompt = "> "
	ti.Focus()
	m := Model{input: ti}
	m.resetInput()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.result.Completed = false
		m.step = stepDone
		return m, tea.Quit
	}

	if m.step == stepAction {
		switch key.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(actions)-1 {
				m.cursor++
			}
		case "enter":
			m.result.Action = actions[m.cursor].action
			if m.result.Action == ActionUpload {
				m.step = stepImage
			} else {
				m.step = stepType
			}
			m.resetInput()
		}
		return m, nil
	}

	if key.String() != "enter" {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		m.errMsg = "a value is required"
		return m, nil
	}
	m.errMsg = ""

	switch m.step {
	case stepUser:
		m.result.UserID = value
		m.step = stepAction
	case stepImage:
		m.result.ImagePath = value
		m.step = stepType
	case stepType:
		m.result.DocumentType = value
		m.result.Completed = true
		m.step = stepDone
		return m, tea.Quit
	}
	m.resetInput()
	return m, nil
}

func (m *Model) resetInput() {
	m.input.SetValue("")
	switch m.step {
	case stepUser:
		m.input.Placeholder = "user id"
	case stepImage:
		m.input.Placeholder = "path/to/image.png"
	case stepType:
		m.input.Placeholder = "invoice, hotel_bill, all ..."
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.step == stepDone {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Document Processor"))
	b.WriteString("\n\n")

	switch m.step {
	case stepUser:
		b.WriteString(labelStyle.Render("Enter your user ID"))
	case stepAction:
		b.WriteString(labelStyle.Render("Choose an action"))
		b.WriteString("\n")
		for i, a := range actions {
			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}
			fmt.Fprintf(&b, "%s%s\n", cursor, a.label)
		}
	case stepImage:
		b.WriteString(labelStyle.Render("Enter the image file path"))
	case stepType:
		if m.result.Action == ActionFetch {
			b.WriteString(labelStyle.Render("Enter the document type to fetch ('all' for every type)"))
		} else {
			b.WriteString(labelStyle.Render("Enter the document type"))
		}
	}

	if m.step != stepAction {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter confirm • esc quit"))
	b.WriteString("\n")
	return b.String()
}

// Result returns the collected answers.
func (m Model) Result() Result {
	return m.result
}

// Run shows the prompt on the given streams and returns the answers.
func Run(in io.Reader, out io.Writer) (Result, error) {
	p := tea.NewProgram(NewModel(), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return Result{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return Result{}, fmt.Errorf("unexpected prompt model %T", final)
	}
	return m.Result(), nil
}
