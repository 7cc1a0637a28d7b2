package model

// Cursor marks ingestion progress for one topic: the newest transaction
// observed by a completed cycle. The zero value means "never ran".
type Cursor struct {
	LastSignature string `json:"last_signature,omitempty"`
	LastTimestamp int64  `json:"last_timestamp,omitempty"`
}

// IsZero reports whether the cursor holds no position.
func (c Cursor) IsZero() bool {
	return c.LastSignature == "" && c.LastTimestamp == 0
}
