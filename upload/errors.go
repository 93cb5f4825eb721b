package upload

import "errors"

var (
	// ErrInvalidSession means the session id is unknown (or required metadata
	// never arrived with chunk 0).
	ErrInvalidSession = errors.New("invalid upload session")
	// ErrMissingChunkData means a recorded chunk file vanished from the spool
	// before reassembly; the session is retained so the chunk can be resent.
	ErrMissingChunkData = errors.New("missing chunk data")
	// ErrDeclaredSizeMismatch means the reassembled bytes do not add up to the
	// declared total. Terminal: the session is destroyed and no asset created.
	ErrDeclaredSizeMismatch = errors.New("declared size mismatch")
	// ErrPartialWriteFailure means a disk or storage error interrupted
	// reassembly; the session is retained so the client can resume.
	ErrPartialWriteFailure = errors.New("partial write failure")
)
