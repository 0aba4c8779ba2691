// Package control is the operator surface: a small command dispatcher over
// the transport's private-chat update stream.
//
// Commands mutate the watch domain (chats, keywords) and read engine and
// store state. Access is restricted to configured admin IDs; other users may
// open a session with the configured password. Every reply is plain
// human-readable text so it renders the same in any Telegram client.
package control
