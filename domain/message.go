// Package domain contains core concepts of the relay.
// Messages are immutable and carry the identity the sender declared.
package domain

import "time"

// ServerName is the sender identity used for notices and command responses.
const ServerName = "server"

// Lobby is the room every session starts in. It always exists.
const Lobby = "lobby"

// Message is one chat event as it travels on the wire.
type Message struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// NewMessage stamps a message with the current time.
func NewMessage(sender, content string) Message {
	return Message{
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Unix(),
	}
}

// ServerNotice builds a message carrying the relay's own voice.
func ServerNotice(content string) Message {
	return NewMessage(ServerName, content)
}

// HistoryLine renders the message as one append-only history record.
func (m Message) HistoryLine() string {
	at := time.Unix(m.Timestamp, 0).UTC().Format(time.DateTime)
	return "[" + at + "] " + m.Sender + ": " + m.Content
}
