// Package transport defines the messaging surface the state machines
// talk through. The concrete chat backend lives in a subpackage; the
// core only depends on these types.
package transport

import "context"

// Messenger delivers outbound replies to a user identity.
type Messenger interface {
	// SendText sends a plain text message.
	SendText(ctx context.Context, identity string, text string) error

	// SendPhoto sends a PNG image with a caption. Used once per
	// registration to deliver the enrollment QR code.
	SendPhoto(ctx context.Context, identity string, photo []byte, caption string) error
}

// Update is one inbound message, tagged with the stable sender identity.
// Command is the bot command without the leading slash ("start",
// "balance"), empty for free text.
type Update struct {
	Identity    string
	DisplayName string
	Command     string
	Text        string
}

// Handler consumes inbound updates.
type Handler func(ctx context.Context, u Update)
