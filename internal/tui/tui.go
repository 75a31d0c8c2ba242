package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hradec/comfyui-direct-model-downloader/internal/button"
	"github.com/hradec/comfyui-direct-model-downloader/internal/consumer"
	"github.com/hradec/comfyui-direct-model-downloader/internal/executor"
	"github.com/hradec/comfyui-direct-model-downloader/internal/logger"
	"github.com/hradec/comfyui-direct-model-downloader/internal/scan"
)

// Run initializes and starts the TUI, populated from the entry source.
func Run(ctx context.Context, source scan.Source, c *consumer.Consumer, machineOpts ...button.Option) error {
	entries, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}

	m := NewModel(func(req executor.Request, machine *button.Machine) {
		if err := c.Download(ctx, req, machine); err != nil {
			logger.Errorf("Download of %s failed: %v", req.URL, err)
		}
	}, machineOpts...)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-entries:
				if !ok {
					return
				}

				p.Send(entryMsg(e))
			}
		}
	}()

	_, err = p.Run()

	return err
}
