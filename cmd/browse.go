package cmd

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"kerbal-mod-manager/mods"
	"kerbal-mod-manager/registry"
)

// browseCmd represents the browse command
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse installed mods and available upgrades interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBrowse(cmd)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// modRow is one line of the browse view.
type modRow struct {
	Identifier       string
	InstalledVersion string
	AvailableVersion string
	Status           string // "up-to-date", "upgrade-available", "not-installed", "unknown"
	Selected         bool
	Selectable       bool
}

// browseModel is the state of the browse TUI.
type browseModel struct {
	rows          []modRow
	selectedIndex int
	message       string
	width         int
	height        int
}

func newBrowseModel(querier *registry.Querier, app *appContext, tolerance mods.Stability) browseModel {
	var rows []modRow

	installed := querier.InstalledReleases()
	seen := make(map[string]bool, len(installed))
	for _, r := range installed {
		row := modRow{
			Identifier:       r.Identifier,
			InstalledVersion: r.Version.String(),
			Status:           "up-to-date",
		}
		if latest, ok := querier.LatestAvailable(r.Identifier, app.criteria, tolerance); ok {
			row.AvailableVersion = latest.Version.String()
			if r.Version.Less(latest.Version) {
				row.Status = "upgrade-available"
				row.Selectable = true
			}
		} else {
			row.Status = "unknown"
		}
		seen[r.Identifier] = true
		rows = append(rows, row)
	}

	for _, id := range querier.AllIdentifiers() {
		if seen[id] {
			continue
		}
		latest, ok := querier.LatestAvailable(id, app.criteria, tolerance)
		if !ok {
			continue
		}
		rows = append(rows, modRow{
			Identifier:       id,
			AvailableVersion: latest.Version.String(),
			Status:           "not-installed",
			Selectable:       true,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return strings.ToLower(rows[i].Identifier) < strings.ToLower(rows[j].Identifier)
	})
	return browseModel{rows: rows}
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case "down", "j":
			if m.selectedIndex < len(m.rows)-1 {
				m.selectedIndex++
			}
		case " ":
			if len(m.rows) > 0 && m.rows[m.selectedIndex].Selectable {
				m.rows[m.selectedIndex].Selected = !m.rows[m.selectedIndex].Selected
			}
		case "enter":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m browseModel) View() string {
	if len(m.rows) == 0 {
		return "No mods known. Run update first.\n"
	}

	var b strings.Builder
	b.WriteString(browseHeader())
	b.WriteString("\n")
	for i, row := range m.rows {
		b.WriteString(m.renderRow(i, row))
		b.WriteString("\n")
	}
	b.WriteString("\n" + browseFooter())
	if m.message != "" {
		b.WriteString("\n" + m.message)
	}
	return b.String()
}

func browseHeader() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)
	return headerStyle.Render(fmt.Sprintf("%-36s %-16s %-16s %-18s", "Identifier", "Installed", "Available", "Status"))
}

func browseFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Italic(true)
	return footerStyle.Render("↑/k: up  ↓/j: down  space: select  enter: install selected  q: quit")
}

func (m browseModel) renderRow(index int, row modRow) string {
	var statusColor string
	switch row.Status {
	case "upgrade-available":
		statusColor = "11" // Yellow
	case "not-installed":
		statusColor = "8" // Grey
	case "unknown":
		statusColor = "9" // Red
	default:
		statusColor = "10" // Green
	}

	marker := "  "
	if row.Selected {
		marker = "✓ "
	}

	line := fmt.Sprintf("%s%-34s %-16s %-16s %s",
		marker, row.Identifier, row.InstalledVersion, row.AvailableVersion,
		lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor)).Render(row.Status))

	if index == m.selectedIndex {
		return lipgloss.NewStyle().Bold(true).Render("> " + line)
	}
	return "  " + line
}

// selectedIdentifiers returns the rows the user marked for install.
func (m browseModel) selectedIdentifiers() []string {
	var out []string
	for _, row := range m.rows {
		if row.Selected {
			out = append(out, row.Identifier)
		}
	}
	return out
}

func runBrowse(cmd *cobra.Command) error {
	app, err := bootstrap(".")
	if err != nil {
		return err
	}
	tolerance, err := app.cfg.Tolerance()
	if err != nil {
		return err
	}
	querier, err := app.newQuerier()
	if err != nil {
		return err
	}

	model := newBrowseModel(querier, app, tolerance)
	querier.Close()

	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return err
	}

	if m, ok := final.(browseModel); ok {
		if picked := m.selectedIdentifiers(); len(picked) > 0 {
			fmt.Printf("Installing %d selected mods...\n", len(picked))
			return runInstall(cmd, picked, false, false, false)
		}
	}
	return nil
}
