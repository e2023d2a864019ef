// Package converter invokes the external deck renderer for one source file.
package converter

import (
	"context"
	"errors"
)

// Sentinel errors wrapped by classified conversion errors.
var (
	ErrConversionFailed  = errors.New("conversion failed")
	ErrConversionTimeout = errors.New("conversion timed out")
	ErrRendererNotFound  = errors.New("renderer executable not found")
)

// Job describes a single source-to-artifact conversion.
type Job struct {
	Source string // source document path
	Output string // destination artifact path
	Style  string // optional styling resource path
}

// Converter renders one source document into an HTML artifact.
//
// Implementations must be idempotent: converting the same Job twice
// overwrites Output deterministically.
type Converter interface {
	Convert(ctx context.Context, job Job) error
}

// Func adapts a plain function to the Converter interface.
type Func func(ctx context.Context, job Job) error

func (f Func) Convert(ctx context.Context, job Job) error { return f(ctx, job) }
