// Package watch holds the monitoring domain state: the registry of monitored
// chats (with per-chat watermarks), the keyword set, and keyword matching.
//
// The registry and keyword set are shared between the polling engine and the
// operator control surface, so both are mutex-guarded and hand out snapshot
// copies. Mutations become visible to the engine on its next cycle, never
// mid-cycle.
package watch
