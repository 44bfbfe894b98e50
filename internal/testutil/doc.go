// Package testutil contains helpers used across tests: fluent builders for
// scripted model responses and thread state, and an auto-responding model
// that lets lessons and agents run end to end without network access.
// They are not intended for production usage.
package testutil
