package ingestion

import "errors"

var (
	// ErrCatalogWriterRequired is returned when a catalog writer is not provided.
	ErrCatalogWriterRequired = errors.New("catalog writer required")

	// ErrProviderRequired is returned when an embedding provider is not provided.
	ErrProviderRequired = errors.New("embedding provider required")

	// ErrInvalidRecord is returned for a catalog export line that cannot be decoded.
	ErrInvalidRecord = errors.New("invalid catalog record")
)
