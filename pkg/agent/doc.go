/*
Package agent provides the nodes and router of the classic agent/tool loop.

  - NewAgentNode consults a ports.Model and appends exactly one assistant message.
  - NewToolNode executes every tool call of the last assistant message
    concurrently and appends one tool result per call, in call order.
  - ToolsCondition routes to the tool node while tool calls are pending and
    stops otherwise.

NewGraph wires the three into a compiled graph with the node ids "agent"
and "tools".
*/
package agent
