/*
Package agentgraph runs resumable agent/tool loops over a graph of nodes.

An agent node asks a language model for the next assistant message; when the
model requests tools, a tool node executes them concurrently and appends their
results; a router decides whether to loop back or stop. After every completed
step the conversation is checkpointed under its thread id, so a run that was
interrupted (crash, timeout, cancellation) resumes exactly where it stopped.

# Key Features

  - Append-only conversation state: nodes return new messages, history is never rewritten.
  - Durable execution: pluggable checkpoint stores (memory, file, Redis, SQLite).
  - Local recovery: unknown tools, malformed arguments and tool failures are
    reported back to the model instead of aborting the run.
  - Explicit graphs: compile-time validation of nodes, edges and the entry node.
  - Safe resumes: per-thread locking and stale-step rejection.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/agentgraph"
		"github.com/aretw0/agentgraph/pkg/adapters/openai"
		"github.com/aretw0/agentgraph/pkg/registry"
	)

	func main() {
		tools := registry.MustNew(
			registry.NewFunc("weather", "Current weather for a city", nil,
				func(ctx context.Context, args map[string]any) (string, error) {
					return "sunny", nil
				}),
		)

		eng, err := agentgraph.NewAgent(openai.New("gpt-4o-mini"), tools)
		if err != nil {
			log.Fatal(err)
		}

		state, err := eng.Chat(context.Background(), "thread-1", "What's the weather in Recife?")
		if err != nil {
			log.Fatal(err)
		}
		last, _ := state.Last()
		fmt.Println(last.Content)
	}
*/
package agentgraph
