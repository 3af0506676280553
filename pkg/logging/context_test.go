package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWith_Tags_Later_Lines(t *testing.T) {
	req := require.New(t)
	// Given a context carrying a buffer logger
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	// When a client id is bound to it
	ctx = With(ctx, Client("c-1"))
	FromContext(ctx).Info("frame handled")

	// Then the line carries the id
	req.Contains(buf.String(), "client_id=c-1")
	req.Contains(buf.String(), "frame handled")
}

func TestFromContext_Falls_Back_To_Default(t *testing.T) {
	req := require.New(t)
	req.Equal(slog.Default(), FromContext(context.Background()))
}
