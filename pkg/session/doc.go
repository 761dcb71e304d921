/*
Package session coordinates access to thread checkpoints.

The Manager wraps a ports.CheckpointStore with per-thread locking (an
in-process ref-counted mutex, optionally backed by a ports.DistributedLocker
for multi-replica deployments) and rejects stale writes: a checkpoint whose
step is not newer than the stored one never replaces it.
*/
package session
