package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/journeygen-backend/internal/storage"
	"github.com/AnshRaj112/journeygen-backend/internal/testutil"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
)

func TestCachedFileStoreFallsBackWithoutRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	files := testutil.NewFileStore()
	cached := NewCachedFileStore(files, client, logger.Nop())
	ctx := context.Background()

	loc, err := cached.Save(ctx, "doc.txt", strings.NewReader("body"))
	require.NoError(t, err)

	data, err := cached.Read(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "body", string(data))

	require.NoError(t, cached.Delete(ctx, loc))
	assert.False(t, files.Has(loc))

	_, err = cached.Read(ctx, loc)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
