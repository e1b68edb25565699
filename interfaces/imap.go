package interfaces

import "context"

// Attachment is one named attachment part extracted from a message.
// Parts without a filename or without an attachment disposition are omitted.
type Attachment struct {
	Filename string
	Content  []byte
}

// MailSource is a scoped mailbox session. Connect must be called before any
// other operation; Close releases the session and is safe on every exit path.
type MailSource interface {
	Connect(ctx context.Context) error
	ListUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, seqNum uint32) ([]byte, error)
	ExtractAttachments(raw []byte) ([]Attachment, error)
	Decompress(data []byte, filename string) ([]byte, error)
	Delete(ctx context.Context, seqNum uint32) error
	Expunge(ctx context.Context) error
	Close()
}
