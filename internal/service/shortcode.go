package service

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	hexAlphabet = "0123456789abcdef"

	// MinShortCodeLength keeps at least 32 bits of entropy per code.
	MinShortCodeLength = 8
)

// CodeGenerator produces candidate short codes. Uniqueness is enforced by the
// store; callers retry on conflict.
type CodeGenerator interface {
	Generate() (string, error)
}

// ShortCodeGenerator draws random lowercase hex codes of a fixed length
type ShortCodeGenerator struct {
	codeLength int
}

// NewShortCodeGenerator creates a new short code generator. Lengths below
// MinShortCodeLength are raised to it.
func NewShortCodeGenerator(codeLength int) *ShortCodeGenerator {
	if codeLength < MinShortCodeLength {
		codeLength = MinShortCodeLength
	}
	return &ShortCodeGenerator{codeLength: codeLength}
}

// Generate returns a fresh random code
func (g *ShortCodeGenerator) Generate() (string, error) {
	code, err := gonanoid.Generate(hexAlphabet, g.codeLength)
	if err != nil {
		return "", fmt.Errorf("generate short code: %w", err)
	}
	return code, nil
}

var _ CodeGenerator = (*ShortCodeGenerator)(nil)
