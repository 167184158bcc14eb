package errors

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperationalError(t *testing.T) {
	assert.Nil(t, NewOperationalError("saving flow", "f", "", nil))

	cause := stderrors.New("disk full")
	err := NewOperationalError("saving flow", "orders", "", cause)
	assert.Equal(t, "saving flow flow=orders: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, err.Timestamp.IsZero())

	err = NewOperationalError("updating node", "orders", "n1", cause).WithAttr("field", "label")
	assert.Equal(t, "updating node flow=orders node=n1: disk full", err.Error())
	assert.Equal(t, "label", err.Attributes["field"])

	var nilErr *OperationalError
	assert.Equal(t, "<nil OperationalError>", nilErr.Error())
	assert.Nil(t, nilErr.Unwrap())
	assert.Nil(t, nilErr.WithAttr("k", "v"))
}

func TestOperationalErrorLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := NewOperationalError("deleting node", "orders", "n1", stderrors.New("required")).WithAttr("kind", "start")
	logger.Info("command failed", "error", err)

	out := buf.String()
	assert.Contains(t, out, "error.operation=\"deleting node\"")
	assert.Contains(t, out, "error.flow=orders")
	assert.Contains(t, out, "error.node=n1")
	assert.Contains(t, out, "error.kind=start")
	assert.Contains(t, out, "error.cause=required")
}
