package viewer

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the viewer on the alternate screen and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, source TaskSource, opts Options) error {
	p := tea.NewProgram(New(source, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}
	return nil
}
