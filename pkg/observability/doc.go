/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Hooks are plain domain.LifecycleHooks values, so they can be combined with Chain and
passed to saevis.WithLifecycleHooks:

	m := observability.NewMetrics(prometheus.NewRegistry())
	hooks := observability.Chain(observability.LogHooks(logger), m.Hooks())
	eng, err := saevis.New(saevis.WithProvider(p), saevis.WithLifecycleHooks(hooks))
*/
package observability
