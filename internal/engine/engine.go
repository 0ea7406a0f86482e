package engine

import (
	"context"

	"weir/internal/api"
	"weir/internal/job"
)

type Engine struct {
	api     *api.Server
	runners []*job.Runner
}

func (e *Engine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.api.Stop()
		for _, r := range e.runners {
			_ = r.Close()
		}
	}()

	return e.api.Serve()
}
