// Package reindex provides maintenance jobs that rebuild derived asset
// fields in bulk: re-embedding text after an embedding model changes and
// re-geocoding addresses after geocoding outages.
//
// Jobs walk the store in ID order using keyset batches and report
// progress to an io.Writer. The reembedder retries transient embedding
// failures with bounded exponential backoff and checkpoints after every
// batch, so an interrupted run resumes where it stopped.
package reindex
