// Package monitor implements the polling engine.
//
// One logical loop iterates the chat registry on a fixed cadence, fetches new
// messages per chat since its watermark, matches them against the keyword
// set, and dispatches matches to the registered sinks. Chats within a cycle
// are processed sequentially on purpose: the remote platform imposes a single
// per-account rate budget, and parallel fetches would multiply the risk of
// triggering flood control.
//
// Failure handling per chat:
//   - flood control: sleep the mandated wait, abandon the chat for this cycle
//   - any other fetch error: log, advance the watermark, continue
//   - a panic escaping the chat loop: fixed cooldown, fresh cycle
//
// Stop() is observed at chat/cycle boundaries only, never mid-chat.
package monitor
