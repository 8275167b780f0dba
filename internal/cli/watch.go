package cli

import (
	"context"

	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
)

// StartWatcher reloads the metric table on change until ctx is done, purging the
// provider cache after every reload. It is a no-op for the http provider.
func (rt *Runtime) StartWatcher(ctx context.Context) {
	if rt.Table == nil {
		rt.Logger.Warn("table watching needs the memory provider; ignoring")
		return
	}
	w := memory.NewWatcher(rt.Config.TablePath(), rt.Table,
		memory.WithWatchLogger(rt.Logger),
		memory.OnReload(func(*memory.Table) {
			if rt.Cache != nil {
				rt.Cache.Purge()
			}
		}),
	)
	go func() {
		if err := w.Run(ctx); err != nil {
			rt.Logger.Error("table watcher stopped", "err", err)
		}
	}()
}
