/*
Package domain contains the core domain models of the agentgraph engine.

It defines the conversation record the engine accumulates, the checkpoint
snapshots it persists, and the error taxonomy shared by every layer. The
package is pure: no I/O, no persistence, no provider SDKs.

# Key Entities

  - Message: One entry of the conversation (user, assistant or tool).
  - ToolCall: A request, emitted by the model, to run a named tool.
  - State: The append-only message record of one thread.
  - Checkpoint: A persisted snapshot of a State plus its step counter.
  - RunError / ToolError: Typed errors carrying an ErrorKind.
*/
package domain
