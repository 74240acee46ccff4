// Package discovery drives the enabled probes over every target range and
// folds their findings into a tracking store.
//
// Ranges are resolved and opened in input order, so the store reports them in
// the order they were given. Probing then runs sequentially by default, or
// concurrently when range or probe parallelism is raised.
//
// Example usage:
//
//	store := tracking.NewStore()
//	orchestrator := discovery.New(store, adapters, discovery.WithRangeParallelism(2))
//	summary := orchestrator.Run(ctx, []string{"10.0.0.0/24", "172.16.0.0/16"})
package discovery
