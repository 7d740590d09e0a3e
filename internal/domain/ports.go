package domain

import "time"

// Ports

// KVStore is the capability contract of the key-value backend: payloads per
// key are size-limited and every key can carry a TTL.
type KVStore interface {
	// Get returns ErrKeyNotFound when the key is absent.
	Get(ctx Context, key string) ([]byte, error)
	Set(ctx Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx Context, keys ...string) error
	ListPrefix(ctx Context, prefix string) ([]string, error)
}

// TextExtractor turns document bytes into plain text. Implementations may
// call external services (e.g., Tika).
type TextExtractor interface {
	Extract(ctx Context, data []byte, mimeType string) (Extraction, error)
}

// ModelClient invokes the external evaluation model once and returns its raw
// text output.
type ModelClient interface {
	Invoke(ctx Context, instructions, content string) (string, error)
}

// AssessmentRepository persists completed assessments.
type AssessmentRepository interface {
	Create(ctx Context, a Assessment) error
	Get(ctx Context, id string) (Assessment, error)
	Delete(ctx Context, id string) error
}
