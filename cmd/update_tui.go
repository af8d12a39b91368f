package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kerbal-mod-manager/repo"
)

// updateProgressMsg is one progress event from the update pipeline.
type updateProgressMsg struct {
	Type    string // "status", "percent", "done", "error"
	Message string
	Percent int
	Result  repo.UpdateResult
	Err     error
}

// updateModel controls the UI for the update command.
type updateModel struct {
	spinner      spinner.Model
	bar          progress.Model
	progressChan chan updateProgressMsg

	status  string
	percent int
	done    bool
	err     error
	result  repo.UpdateResult
}

func initialUpdateModel(ctx context.Context, app *appContext, skipETags bool) updateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := updateModel{
		spinner:      s,
		bar:          progress.New(progress.WithDefaultGradient()),
		progressChan: make(chan updateProgressMsg, 100), // Buffer slightly to avoid blocking
		status:       "Contacting repositories...",
	}

	go func() {
		defer close(m.progressChan)
		result, err := runRepoUpdate(ctx, app, skipETags, func(percent int) {
			m.progressChan <- updateProgressMsg{Type: "percent", Percent: percent}
		})
		if err != nil {
			m.progressChan <- updateProgressMsg{Type: "error", Err: err}
			return
		}
		m.progressChan <- updateProgressMsg{Type: "done", Result: result}
	}()

	return m
}

func (m updateModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivity())
}

func (m updateModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.progressChan
		if !ok {
			return updateProgressMsg{Type: "done"}
		}
		return msg
	}
}

func (m updateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.done {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateProgressMsg:
		switch msg.Type {
		case "done":
			m.done = true
			m.result = msg.Result
			m.status = describeUpdateResult(msg.Result)
			return m, tea.Quit

		case "error":
			m.done = true
			m.err = msg.Err
			m.status = "Update failed"
			return m, tea.Quit

		case "status":
			m.status = msg.Message

		case "percent":
			m.percent = msg.Percent
		}
		return m, m.waitForActivity()
	}

	return m, nil
}

func (m updateModel) View() string {
	var b strings.Builder

	if m.done {
		if m.err != nil {
			b.WriteString(fmt.Sprintf("✗ %s: %v\n", m.status, m.err))
		} else {
			b.WriteString(fmt.Sprintf("✓ %s\n", m.status))
		}
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.status))
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n\nPress q to abort\n")
	return b.String()
}

// runUpdateTUI runs the update behind the interactive progress display and
// surfaces the pipeline's error once the program exits.
func runUpdateTUI(ctx context.Context, app *appContext, skipETags bool) error {
	model := initialUpdateModel(ctx, app, skipETags)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(updateModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
