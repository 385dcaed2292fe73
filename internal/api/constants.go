package api //nolint:revive // package name is intentional

const (
	// DefaultMaxBodySize is the default maximum request body size (64KB).
	DefaultMaxBodySize = 64 * 1024

	// DefaultMaxMessageRunes bounds the length of one chat message.
	DefaultMaxMessageRunes = 4000
)
