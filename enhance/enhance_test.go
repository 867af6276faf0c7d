package enhance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeModel is a registry test double.
type fakeModel struct {
	name string
	err  error
}

func (m *fakeModel) Enhance(transcription, systemPrompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return strings.ToUpper(transcription), nil
}

func (m *fakeModel) Name() string { return m.name }

// writeModelFile writes a file with the given leading bytes and returns
// its path.
func writeModelFile(t *testing.T, head []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.gguf")
	if err := os.WriteFile(path, head, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestIsModelAvailable(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"gguf header", []byte("GGUF\x03\x00\x00\x00"), true},
		{"wrong magic", []byte("ONNX\x00\x00\x00\x00"), false},
		{"truncated", []byte("GG"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeModelFile(t, tt.head)
			if got := IsModelAvailable(path); got != tt.want {
				t.Errorf("IsModelAvailable = %v, want %v", got, tt.want)
			}
		})
	}

	if IsModelAvailable(filepath.Join(t.TempDir(), "missing.gguf")) {
		t.Error("IsModelAvailable reported a missing file as available")
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	_, err := LoadModel(filepath.Join(t.TempDir(), "missing.gguf"))
	if !errors.Is(err, ErrModelNotAvailable) {
		t.Errorf("err = %v, want ErrModelNotAvailable", err)
	}
}

func TestLoadModelNoBackends(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	path := writeModelFile(t, []byte("GGUF\x03\x00\x00\x00"))
	_, err := LoadModel(path)
	if !errors.Is(err, ErrModelNotAvailable) {
		t.Errorf("err = %v, want ErrModelNotAvailable", err)
	}
}

func TestLoadModelPicksBackendByNameOrder(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	Register("zeta", func(path string) (Model, error) {
		return &fakeModel{name: "zeta"}, nil
	})
	Register("alpha", func(path string) (Model, error) {
		return &fakeModel{name: "alpha"}, nil
	})

	path := writeModelFile(t, []byte("GGUF\x03\x00\x00\x00"))
	model, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if model.Name() != "alpha" {
		t.Errorf("Name = %q, want first backend in name order", model.Name())
	}
}

func TestLoadModelFallsThroughFailingBackend(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	Register("alpha", func(path string) (Model, error) {
		return nil, fmt.Errorf("quantization unsupported: %w", ErrInference)
	})
	Register("beta", func(path string) (Model, error) {
		return &fakeModel{name: "beta"}, nil
	})

	path := writeModelFile(t, []byte("GGUF\x03\x00\x00\x00"))
	model, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if model.Name() != "beta" {
		t.Errorf("Name = %q, want beta", model.Name())
	}
}

func TestLoadModelAllBackendsFail(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	Register("alpha", func(path string) (Model, error) {
		return nil, fmt.Errorf("bad vocab: %w", ErrTokenizer)
	})

	path := writeModelFile(t, []byte("GGUF\x03\x00\x00\x00"))
	_, err := LoadModel(path)
	if err == nil {
		t.Fatal("LoadModel succeeded with only failing backends")
	}
	if !errors.Is(err, ErrTokenizer) {
		t.Errorf("err = %v, want wrapped ErrTokenizer", err)
	}
}

func TestRegisterPanics(t *testing.T) {
	unregisterAll()
	t.Cleanup(unregisterAll)

	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s did not panic", name)
			}
		}()
		fn()
	}

	mustPanic("nil loader", func() { Register("nil", nil) })

	Register("dup", func(path string) (Model, error) { return nil, ErrInference })
	mustPanic("duplicate name", func() {
		Register("dup", func(path string) (Model, error) { return nil, ErrInference })
	})
}

func TestEnhanceDefaultPrompt(t *testing.T) {
	m := &fakeModel{name: "fake"}
	out, err := m.Enhance("hello there", "")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if out != "HELLO THERE" {
		t.Errorf("out = %q", out)
	}
}
