// Package generator turns a single prompt into generated text using a
// generative-content provider.
package generator

import "context"

// Generator produces text for a prompt. Implementations make at most one
// provider call per invocation and never retry.
type Generator interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, message string) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}
