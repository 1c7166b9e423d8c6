// Package core defines the core business logic and interfaces for the speech gateway.
package core

import "context"

// Synthesizer defines the interface for an external text-to-speech provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, model string) ([]byte, error)
}

// Transcriber defines the interface for an external speech-to-text provider.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// ArtifactStore defines the interface for the backing store that holds
// immutable, content-addressed audio artifacts.
//
// Save must be atomic with respect to readers: a failed save leaves nothing
// visible under the final key.
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Notifier is informed after a fresh artifact has been generated and saved.
// Implementations must tolerate being called concurrently.
type Notifier interface {
	AudioCreated(ctx context.Context, key string) error
}
