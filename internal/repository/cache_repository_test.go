package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/scholarhub-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "scholarhub:", nil)
	ctx := context.Background()

	assert.NoError(t, repo.Set(ctx, "catalog:abc", map[string]int{"count": 1}, time.Minute))
	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "catalog:abc", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.DeleteByPattern(ctx, "catalog:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
	assert.Equal(t, "scholarhub:catalog:abc", repo.key("catalog:abc"))
}
