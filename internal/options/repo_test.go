package options

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/blingbridge/pkg/db/dbtest"
)

func TestSetGetOverwriteDelete(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	_, ok, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Set(ctx, "bling_contact:user:7", "31"))
	require.NoError(t, repo.Set(ctx, "bling_contact:user:7", "32"))

	value, ok, err := repo.Get(ctx, "bling_contact:user:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "32", value)

	require.NoError(t, repo.Delete(ctx, "bling_contact:user:7"))
	_, ok, err = repo.Get(ctx, "bling_contact:user:7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONRoundTripAndDecodeError(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	type credential struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, repo.SetJSON(ctx, "cred", credential{AccessToken: "at"}))

	var got credential
	ok, err := repo.GetJSON(ctx, "cred", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "at", got.AccessToken)

	require.NoError(t, repo.Set(ctx, "broken", "{not json"))
	ok, err = repo.GetJSON(ctx, "broken", &got)
	assert.True(t, ok)
	assert.Error(t, err)
}
