// Package chat is a minimal text chat task.
//
// Both peers offer "dbrgn.chat" with their nickname as task data. Once the
// task is selected they exchange "msg" and "nick_change" messages, each a
// MessagePack map {type, data}. Incoming messages are surfaced on the
// Events channel.
package chat
