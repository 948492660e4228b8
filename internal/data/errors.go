package data

import "errors"

// Domain-level errors returned by the stores and the chat service.
// The HTTP boundary maps these onto status codes with errors.Is, so
// wrapped errors still match.
var (
	// ErrNotFound: the referenced message or conversation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotSender: the acting user is not the original sender of the
	// message (edit and delete are sender-only operations).
	ErrNotSender = errors.New("only the sender may modify this message")

	// ErrEmptyBody: a send or edit carried a blank message body.
	ErrEmptyBody = errors.New("message body must not be empty")

	// ErrEmptyEmoji: a reaction request carried no emoji.
	ErrEmptyEmoji = errors.New("emoji must not be empty")

	// ErrMessageDeleted: the message was soft-deleted; its body is a
	// tombstone and can no longer be edited.
	ErrMessageDeleted = errors.New("message has been deleted")
)
