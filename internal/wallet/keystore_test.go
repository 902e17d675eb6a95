package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHexPrefix(t *testing.T) {
	assert.Equal(t, "abc123", stripHexPrefix("0xabc123"))
	assert.Equal(t, "abc123", stripHexPrefix("0Xabc123"))
	assert.Equal(t, "abc123", stripHexPrefix("abc123"))
	assert.Equal(t, "", stripHexPrefix("0x"))
	assert.Equal(t, "", stripHexPrefix(""))
}

func TestInMemoryKeystore(t *testing.T) {
	ks := NewInMemoryKeystore()

	ref, err := ks.Store("main", "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "w3sale.main", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
}

func TestKeystoreWithoutRing(t *testing.T) {
	ks := &Keystore{}

	_, err := ks.Store("main", "deadbeef")
	assert.Error(t, err)
	_, err = ks.Retrieve("w3sale.main")
	assert.Error(t, err)
	assert.NoError(t, ks.Delete("w3sale.main"))
}

func TestFilePasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "hunter2")
	pw, err := filePassword("unlock")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}
