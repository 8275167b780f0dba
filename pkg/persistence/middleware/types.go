package middleware

import "github.com/gnueaj/SAE-vis-sub000/pkg/ports"

// Middleware decorates a TreeStore.
type Middleware func(ports.TreeStore) ports.TreeStore

// Chain applies middlewares so that the first one is outermost.
func Chain(store ports.TreeStore, mws ...Middleware) ports.TreeStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
