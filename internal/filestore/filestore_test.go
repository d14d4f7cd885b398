package filestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	doc, err := Open[[]string](path)
	require.NoError(t, err)
	assert.Empty(t, doc.Get())

	_, err = Open[[]string](path)
	require.NoError(t, err)
}

func TestDocument_MutatePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc, err := Open[[]string](path)
	require.NoError(t, err)

	err = doc.Mutate(func(cur []string) ([]string, error) {
		return append(cur, "a", "b"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, doc.Get())

	reopened, err := Open[[]string](path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reopened.Get())
}

func TestDocument_MutateErrorLeavesStateUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	doc, err := Open[[]string](path)
	require.NoError(t, err)

	require.NoError(t, doc.Mutate(func(cur []string) ([]string, error) { return append(cur, "keep"), nil }))

	err = doc.Mutate(func(cur []string) ([]string, error) {
		return nil, assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, []string{"keep"}, doc.Get())
}

func TestSubscriptionStore_AddReplacesSameEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.json")
	store, err := OpenSubscriptionStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Add(PushSubscription{Endpoint: "https://push.example/1", Keys: WebPushKeys{P256DH: "a"}}))
	require.NoError(t, store.Add(PushSubscription{Endpoint: "https://push.example/1", Keys: WebPushKeys{P256DH: "b"}}))

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].Keys.P256DH)
}

func TestSubscriptionStore_RemoveByEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subs.json")
	store, err := OpenSubscriptionStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Add(PushSubscription{Endpoint: "https://push.example/1"}))
	require.NoError(t, store.Add(PushSubscription{Endpoint: "https://push.example/2"}))
	require.NoError(t, store.RemoveByEndpoint("https://push.example/1"))

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "https://push.example/2", all[0].Endpoint)
}

func TestDeviceTokenStore_AddAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := OpenDeviceTokenStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Add(DeviceToken{Token: "tok-1"}))
	require.Len(t, store.All(), 1)

	require.NoError(t, store.RemoveByToken("tok-1"))
	assert.Empty(t, store.All())
}

func TestHashKeyMaterial_RoundTrips(t *testing.T) {
	digest, err := HashKeyMaterial("super-secret-pem-contents")
	require.NoError(t, err)
	assert.True(t, KeyMaterialMatches("super-secret-pem-contents", digest))
	assert.False(t, KeyMaterialMatches("wrong", digest))
}
