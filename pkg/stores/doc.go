// Package stores persists run history. The SQLite store keeps one row
// per run plus one row per declared step, written in a single
// transaction when the run reaches a terminal state.
package stores
