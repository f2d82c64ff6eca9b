package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"anvil.dev/cli/internal/infrastructure/logging"
)

// confirmModel is a single y/N question.
type confirmModel struct {
	prompt    string
	confirmed bool
	answered  bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.confirmed, m.answered = true, true
		return m, tea.Quit
	case "n", "N", "enter", "esc", "q", "ctrl+c":
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		answer := "no"
		if m.confirmed {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", m.prompt, answer)
	}
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("[y/N]")
	return fmt.Sprintf("%s %s ", m.prompt, hint)
}

// confirm asks a yes/no question. On a terminal it runs an interactive
// prompt; otherwise it reads one line from in.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if logging.IsTerminal(in) && logging.IsTerminal(out) {
		final, err := tea.NewProgram(confirmModel{prompt: prompt}, tea.WithInput(in), tea.WithOutput(out)).Run()
		if err != nil {
			return false, fmt.Errorf("prompt failed: %w", err)
		}
		return final.(confirmModel).confirmed, nil
	}

	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
