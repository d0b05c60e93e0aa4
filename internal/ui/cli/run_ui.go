package cli

import (
	coreapp "chunkmap/internal/core/app"
	"chunkmap/internal/core/ports"

	tea "github.com/charmbracelet/bubbletea"
)

func runUI(app *coreapp.App, svc ports.AnalysisService) error {
	m := initialModel(svc)
	p := tea.NewProgram(m, tea.WithAltScreen())

	app.SetUpdateHandler(func(res ports.AnalyzeResult) {
		p.Send(updateMsg{result: res})
	})

	go func() {
		if res, ok := svc.Last(); ok {
			p.Send(updateMsg{result: res})
		}
	}()

	_, err := p.Run()
	return err
}
