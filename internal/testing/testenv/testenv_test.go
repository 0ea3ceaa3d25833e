package testenv

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportEnablesTestMode(t *testing.T) {
	assert.Equal(t, "1", os.Getenv("STUDIO_TEST_MODE"))
	assert.NotEmpty(t, os.Getenv("GOTENBERG_URL"))
}

func TestRedisFixture(t *testing.T) {
	mr, client := Redis(t)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	Logger().Info("discarded")
}
