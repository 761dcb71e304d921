/*
Package observability turns engine lifecycle events into Prometheus metrics
and structured log records.

Both are exposed as domain.LifecycleHooks and can be combined with
LifecycleHooks.Merge before being handed to the engine.
*/
package observability
