// Package store persists downloaded documents and emits acquisition
// records.
//
// The DocumentStore gives every source URL a deterministic local name
// (URL fingerprint plus path basename), skips re-downloads whose size
// already matches the server's declared length, and writes through a
// temporary sibling file with an atomic rename so a partial download is
// never visible under the final name.
//
// The Recorder appends one line-delimited JSON record per stored document;
// the records file is the handoff boundary toward the metadata and
// text-extraction stages.
package store
