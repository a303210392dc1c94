// Package mock provides test doubles for the embedding interfaces.
//
// # Usage in Tests
//
//	// Deterministic vectors derived from the text hash
//	provider := mock.NewMockProvider()
//	v, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Pinned vectors for controlled similarity
//	e := mock.NewMockEmbedder().
//	    WithVector("query", []float32{1, 0}).
//	    WithVector("row", []float32{0.8, 0.6})
//
//	// A provider whose service is down
//	down := mock.NewUnavailableProvider()
//
// # Default Behavior
//
// MockEmbedder returns unit vectors computed from an FNV hash of the text.
// Different texts give nearly orthogonal vectors and equal texts give equal vectors.
package mock
