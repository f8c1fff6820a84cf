package rendering

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontsOnce   sync.Once
	regularFont *truetype.Font
	boldFont    *truetype.Font
	fontsErr    error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		regularFont, fontsErr = truetype.Parse(goregular.TTF)
		if fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse regular font: %w", fontsErr)
			return
		}
		boldFont, fontsErr = truetype.Parse(gobold.TTF)
		if fontsErr != nil {
			fontsErr = fmt.Errorf("failed to parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

// faceSet creates faces on demand. Faces are not safe for concurrent use, so each
// render owns its own set.
type faceSet struct {
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

func newFaceSet() *faceSet {
	return &faceSet{faces: make(map[faceKey]font.Face)}
}

func (s *faceSet) get(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: size}
	if f, ok := s.faces[key]; ok {
		return f
	}
	src := regularFont
	if bold {
		src = boldFont
	}
	f := truetype.NewFace(src, &truetype.Options{Size: size, Hinting: font.HintingFull})
	s.faces[key] = f
	return f
}

func (s *faceSet) close() {
	for _, f := range s.faces {
		_ = f.Close()
	}
}
