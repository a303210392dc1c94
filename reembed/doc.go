// Package reembed rebuilds the vector index of a catalog store.
//
// Rows are streamed in product ID order and embedded in batches. Embedding
// calls are retried with exponential backoff, vectors are normalised to unit
// length, and a run can resume after the last product ID it completed.
package reembed
