/*
Package ports defines the driven ports (interfaces) for the agentgraph engine.

These interfaces decouple the core loop from external implementations, allowing
the engine to work with various model providers, checkpoint backends and
lock managers.

# Key Interfaces

  - Model: The reasoning component invoked by the agent node.
  - CheckpointStore: Persists and loads thread checkpoints.
  - DistributedLocker: Provides distributed locking for concurrent thread access.
*/
package ports
