// Package enhance defines the boundary between the overlay and the LLM
// used to clean up raw transcriptions. The overlay only ever sees the
// Model interface; concrete inference backends register themselves at
// init time and are selected at load.
package enhance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// DefaultSystemPrompt is the instruction sent alongside a transcription
// when the caller does not supply its own.
const DefaultSystemPrompt = "You are a transcription assistant. Fix " +
	"punctuation, capitalization and obvious speech recognition errors in " +
	"the text. Keep the wording and meaning unchanged. Reply with the " +
	"corrected text only."

// Sentinel errors returned by backends, matched with errors.Is.
var (
	// ErrModelNotAvailable means the model file is missing, unreadable
	// or not a GGUF model.
	ErrModelNotAvailable = errors.New("enhance: model not available")

	// ErrTokenizer means the backend failed to encode the prompt or
	// decode the output tokens.
	ErrTokenizer = errors.New("enhance: tokenizer failure")

	// ErrInference means the backend's forward pass failed.
	ErrInference = errors.New("enhance: inference failure")
)

// Model enhances raw transcriptions. Implementations are expected to be
// expensive to create and cheap to call repeatedly.
type Model interface {
	// Enhance rewrites a transcription under the given system prompt.
	// An empty systemPrompt selects DefaultSystemPrompt.
	Enhance(transcription, systemPrompt string) (string, error)

	// Name identifies the backend and model, for logs.
	Name() string
}

// Loader creates a Model from a model file path.
type Loader func(path string) (Model, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Loader)
)

// Register makes a backend available to LoadModel under the given name.
// It panics if the loader is nil or the name is already taken, so
// misconfigured backends fail at init rather than at load.
func Register(name string, loader Loader) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if loader == nil {
		panic("enhance: Register loader is nil")
	}
	if _, dup := backends[name]; dup {
		panic("enhance: Register called twice for backend " + name)
	}
	backends[name] = loader
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unregisterAll resets the registry, for tests.
func unregisterAll() {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends = make(map[string]Loader)
}

// ggufMagic is the first four bytes of every GGUF model file.
var ggufMagic = []byte("GGUF")

// IsModelAvailable reports whether path names a readable GGUF model.
func IsModelAvailable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return bytes.Equal(magic[:], ggufMagic)
}

// LoadModel loads the model at path with the first registered backend
// that accepts it, trying backends in name order. The path is sniffed
// first; a missing or non-GGUF file returns ErrModelNotAvailable
// without touching any backend.
func LoadModel(path string) (Model, error) {
	if !IsModelAvailable(path) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotAvailable, path)
	}

	names := Backends()
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no backends registered", ErrModelNotAvailable)
	}

	var errs []error
	for _, name := range names {
		backendsMu.RLock()
		loader := backends[name]
		backendsMu.RUnlock()

		model, err := loader(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %w", name, err))
			continue
		}
		return model, nil
	}
	return nil, fmt.Errorf("enhance: load %s: %w", path, errors.Join(errs...))
}
