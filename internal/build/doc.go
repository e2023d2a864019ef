// Package build runs the deck pipeline: discovery, conversion, metadata
// extraction, tracker injection and manifest generation.
//
// A full pass (Builder.Build) processes every source deck with bounded
// concurrency and writes the manifest exactly once after all per-file
// pipelines have settled. The watch loop uses the single-file pipeline
// (Builder.BuildFile) followed by a listing-based manifest refresh
// (Builder.RebuildManifest).
package build
