package api

// API limits and constants.
const (
	// MaxUploadSize is the default cap on a multipart write (20 MB).
	MaxUploadSize = 20 << 20

	// multipartMemory is how much of a multipart body is held in memory
	// before spilling to temp files.
	multipartMemory = 8 << 20
)

// Cache-Control header values.
const (
	// Asset keys carry a revision, so a key's bytes never change.
	CacheImmutable = "public, max-age=31536000, immutable"
	CacheNoStore   = "no-cache"
)
