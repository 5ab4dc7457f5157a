// Package state persists a node's externally visible status to disk.
//
// A Recorder receives lifecycle and health events and keeps a status.json
// file in a directory up to date, so local tooling can inspect a node
// without reaching its probe server:
//
//	repo := state.NewFileRepository("/var/lib/nodecycle")
//	rec := state.NewRecorder(repo, nodeID, logger)
//
//	// pass rec wherever a lifecycle or health event emitter is accepted
//
// Writes are atomic (temp file, then rename). Field names are snake_case.
package state
