// Package core holds the provider-neutral data model shared by every other
// package: role-tagged Content made of a closed set of Parts, the per-thread
// State, the ToolContext handed to tool implementations and the Events an
// agent emits while it runs.
//
// Content marshals to a tagged JSON envelope so conversations can be stored by
// the checkpoint savers and restored without losing part types.
package core
