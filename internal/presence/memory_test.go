package presence

import (
	"context"
	"testing"

	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMemoryRegistry_AddMembersRemove(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	members, err := reg.Members(ctx, 1)
	assert.NoError(t, err)
	assert.Empty(t, members)

	assert.NoError(t, reg.Add(ctx, 1, "c1"))
	assert.NoError(t, reg.Add(ctx, 1, "c2"))

	members, err = reg.Members(ctx, 1)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, members)

	online, err := reg.IsOnline(ctx, 1)
	assert.NoError(t, err)
	assert.True(t, online)

	assert.NoError(t, reg.Remove(ctx, 1, "c1"))
	members, err = reg.Members(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"c2"}, members)

	assert.NoError(t, reg.Remove(ctx, 1, "c2"))
	online, err = reg.IsOnline(ctx, 1)
	assert.NoError(t, err)
	assert.False(t, online)
}

func TestMemoryRegistry_Idempotency(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx := context.Background()

	assert.NoError(t, reg.Add(ctx, 7, "c1"))
	assert.NoError(t, reg.Add(ctx, 7, "c1"))
	members, err := reg.Members(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, []string{"c1"}, members)

	assert.NoError(t, reg.Remove(ctx, 7, "ghost"))
	assert.NoError(t, reg.Remove(ctx, 7, "c1"))
	assert.NoError(t, reg.Remove(ctx, 7, "c1"))
}

func TestNewRegistry_Factory(t *testing.T) {
	// redis branch is covered in redis_test.go; here the memory and error
	// branches
	reg, err := NewRegistry(zap.NewNop(), &config.PresenceConfig{Type: "memory"})
	assert.NoError(t, err)
	assert.NotNil(t, reg)

	reg, err = NewRegistry(zap.NewNop(), &config.PresenceConfig{Type: "bogus"})
	assert.Error(t, err)
	assert.Nil(t, reg)
}
