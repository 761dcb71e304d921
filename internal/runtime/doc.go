// Package runtime drives a compiled graph one step at a time, checkpointing
// the conversation after every completed step.
package runtime
