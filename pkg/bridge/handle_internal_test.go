package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishHandle_ResolvesOnce(t *testing.T) {
	h := newPublishHandle(1, 2)
	h.resolve([]string{"a", "b"}, nil)
	h.resolve(nil, errors.New("late failure"))

	ids, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
