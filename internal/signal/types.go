package signal

// Wire types for signal-cli's JSON-RPC "receive" notifications.

// Envelope represents an incoming message envelope.
type Envelope struct {
	Source       string `json:"source"`
	SourceNumber string `json:"sourceNumber"`
	SourceUUID   string `json:"sourceUuid"`
	SourceName   string `json:"sourceName"`
	SourceDevice int    `json:"sourceDevice"`
	Timestamp    int64  `json:"timestamp"`

	// Message types (only one will be non-nil)
	DataMessage    *DataMessage    `json:"dataMessage,omitempty"`
	SyncMessage    *SyncMessage    `json:"syncMessage,omitempty"`
	TypingMessage  *TypingMessage  `json:"typingMessage,omitempty"`
	ReceiptMessage *ReceiptMessage `json:"receiptMessage,omitempty"`
}

// DataMessage represents a standard message.
type DataMessage struct {
	Timestamp        int64        `json:"timestamp"`
	Message          string       `json:"message"`
	ExpiresInSeconds int          `json:"expiresInSeconds"`
	ViewOnce         bool         `json:"viewOnce"`
	Attachments      []Attachment `json:"attachments"`
	Quote            *Quote       `json:"quote,omitempty"`
	Reaction         *Reaction    `json:"reaction,omitempty"`
	RemoteDelete     *Deletion    `json:"remoteDelete,omitempty"`
	GroupInfo        *GroupInfo   `json:"groupInfo,omitempty"`
}

// Attachment represents a file attachment.
type Attachment struct {
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
	ID          string `json:"id"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// Quote is the reply metadata carried by a data message. ID is the quoted
// message's timestamp.
type Quote struct {
	ID           int64             `json:"id"`
	Author       string            `json:"author"`
	AuthorNumber string            `json:"authorNumber"`
	AuthorUUID   string            `json:"authorUuid"`
	Text         string            `json:"text"`
	Attachments  []QuoteAttachment `json:"attachments"`
}

// QuoteAttachment describes media in a quoted message. Signal does not
// include the attachment id, only a thumbnail.
type QuoteAttachment struct {
	ContentType string      `json:"contentType"`
	Filename    string      `json:"filename"`
	Thumbnail   *Attachment `json:"thumbnail,omitempty"`
}

// Reaction is an emoji reaction notification.
type Reaction struct {
	Emoji               string `json:"emoji"`
	TargetAuthor        string `json:"targetAuthor"`
	TargetSentTimestamp int64  `json:"targetSentTimestamp"`
	IsRemove            bool   `json:"isRemove"`
}

// Deletion is a remote delete notification.
type Deletion struct {
	Timestamp int64 `json:"timestamp"`
}

// SyncMessage represents a sync message.
type SyncMessage struct {
	SentMessage *SentSyncMessage `json:"sentMessage,omitempty"`
}

// SentSyncMessage is a message the account sent from another device.
type SentSyncMessage struct {
	Destination       string       `json:"destination"`
	DestinationNumber string       `json:"destinationNumber"`
	Timestamp         int64        `json:"timestamp"`
	Message           string       `json:"message"`
	Attachments       []Attachment `json:"attachments"`
	GroupInfo         *GroupInfo   `json:"groupInfo,omitempty"`
}

// TypingMessage represents a typing indicator.
type TypingMessage struct {
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// ReceiptMessage represents a read receipt.
type ReceiptMessage struct {
	When       int64   `json:"when"`
	IsDelivery bool    `json:"isDelivery"`
	IsRead     bool    `json:"isRead"`
	Timestamps []int64 `json:"timestamps"`
}

// GroupInfo represents group information.
type GroupInfo struct {
	GroupID string `json:"groupId"`
	Type    string `json:"type"`
}
