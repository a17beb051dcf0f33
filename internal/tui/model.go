// Package tui is a terminal front-end for the translator.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ekisa-team/anubad/internal/config"
)

const (
	emptyInputMessage = "Please enter some text to translate."
	loadFailedMessage = "Failed to load the translator model. Please check if the model files are present in the 'translator' directory."
)

// TranslateFunc translates text to English.
type TranslateFunc func(ctx context.Context, text string) (string, error)

type level int

const (
	levelNone level = iota
	levelSuccess
	levelWarning
	levelError
)

type translatedMsg struct {
	err  error
	text string
}

// Model is the bubbletea model of the terminal UI.
type Model struct {
	translate    TranslateFunc
	loadErr      error
	ui           config.UIConfig
	message      string
	translation  string
	input        textarea.Model
	spinner      spinner.Model
	level        level
	busy         bool
	showExamples bool
}

// New creates the terminal UI. A non-nil loadErr renders the load failure
// and disables input.
func New(translate TranslateFunc, ui config.UIConfig, loadErr error) *Model {
	ta := textarea.New()
	ta.Placeholder = "Enter Bengali text:"
	ta.SetHeight(4)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Title

	return &Model{
		translate: translate,
		loadErr:   loadErr,
		ui:        ui,
		input:     ta,
		spinner:   s,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.showExamples = !m.showExamples
			return m, nil
		case "ctrl+s":
			return m, m.submit()
		}
		if m.loadErr != nil || m.busy {
			return m, nil
		}

	case translatedMsg:
		m.busy = false
		if msg.err != nil {
			m.level = levelError
			m.message = "Translation error: " + strings.TrimPrefix(msg.err.Error(), "translation error: ")
			m.translation = ""
			return m, nil
		}
		m.level = levelSuccess
		m.message = "Translation:"
		m.translation = msg.text
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	if m.loadErr != nil || m.busy {
		return nil
	}

	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		m.level = levelWarning
		m.message = emptyInputMessage
		m.translation = ""
		return nil
	}

	m.busy = true
	m.level = levelNone
	m.message = ""

	translate := m.translate
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		out, err := translate(context.Background(), text)
		return translatedMsg{text: out, err: err}
	})
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render(m.ui.Title) + "\n")
	b.WriteString(styles.Description.Render(m.ui.Description) + "\n\n")

	if m.loadErr != nil {
		b.WriteString(styles.Error.Render(loadFailedMessage) + "\n")
		b.WriteString(styles.Error.Render("Error loading model: "+m.loadErr.Error()) + "\n\n")
		b.WriteString(styles.Hint.Render("esc: quit"))
		return b.String()
	}

	b.WriteString(m.input.View() + "\n")
	b.WriteString(styles.Hint.Render("ctrl+s: translate  tab: examples  esc: quit") + "\n\n")

	switch {
	case m.busy:
		b.WriteString(m.spinner.View() + " Translating...\n")
	case m.level == levelSuccess:
		b.WriteString(styles.Success.Render(m.message) + "\n")
		b.WriteString(styles.Translation.Render(m.translation) + "\n")
	case m.level == levelWarning:
		b.WriteString(styles.Warning.Render(m.message) + "\n")
	case m.level == levelError:
		b.WriteString(styles.Error.Render(m.message) + "\n")
	}

	if m.showExamples {
		var ex strings.Builder
		ex.WriteString("Try these Bengali phrases:\n")
		for _, e := range m.ui.Examples {
			ex.WriteString("\nBengali: " + e.Bengali + "\nEnglish: " + e.English + "\n")
		}
		b.WriteString("\n" + styles.Examples.Render(ex.String()))
	}

	return b.String()
}

// Run starts the terminal UI and blocks until the user quits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
