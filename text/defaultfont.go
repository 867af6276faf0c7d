package text

import (
	"sync"

	"github.com/go-fonts/latin-modern/lmsans10regular"
)

var (
	defaultOnce sync.Once
	defaultSrc  *FontSource
	defaultErr  error
)

// DefaultSource returns the embedded Latin Modern Sans font, parsed once.
// It keeps the compositor usable without any system font configuration.
func DefaultSource() (*FontSource, error) {
	defaultOnce.Do(func() {
		defaultSrc, defaultErr = NewFontSource(lmsans10regular.TTF)
	})
	return defaultSrc, defaultErr
}
