package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "provider", KindProvider.String())
	assert.Equal(t, "serialization", KindSerialization.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestError(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := newError(KindTransport, "op", cause)

	assert.Equal(t, "connection reset by peer", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "provider error", (&Error{Kind: KindProvider}).Error())

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindTransport))
	assert.False(t, IsKind(wrapped, KindProvider))
	assert.Equal(t, ErrorKind(0), KindOf(cause))
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func(_ context.Context, m string) (string, error) { return "echo: " + m, nil })
	out, err := g.Generate(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}
