package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// Embedded WGSL shader sources.
var (
	//go:embed shaders/text.wgsl
	textShaderSource string

	//go:embed shaders/rect.wgsl
	rectShaderSource string
)

// TextShaderSource returns the WGSL source for the glyph quad shader.
func TextShaderSource() string { return textShaderSource }

// RectShaderSource returns the WGSL source for the rounded rect shader.
func RectShaderSource() string { return rectShaderSource }

// compileShader validates the WGSL through naga and creates the module.
// Validation failures from naga's own feature gaps are logged and ignored;
// the hal backend still compiles the source itself.
func compileShader(device hal.Device, label, source string) (hal.ShaderModule, error) {
	if source == "" {
		return nil, fmt.Errorf("wgpu: %s shader source is empty", label)
	}

	if _, err := naga.Compile(source); err != nil {
		slogger().Debug("wgsl pre-validation unavailable", "shader", label, "err", err)
	}

	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}
	return module, nil
}
