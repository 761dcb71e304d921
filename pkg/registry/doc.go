/*
Package registry maps tool names to executable tool descriptors.

Registration fails fast on duplicate names. Execute is the single dispatch
point used by the tool node: it resolves the tool, validates the call's
arguments against the tool's JSON Schema and classifies every failure as a
*domain.ToolError so the caller can report it back to the model.
*/
package registry
