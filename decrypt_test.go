// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

func TestDefaultSalt(t *testing.T) {
	p := Principal{Name: newPrincipalNameForTest("alice"), Realm: "EXAMPLE.COM"}
	assert.Equal(t, "EXAMPLE.COMalice", defaultSalt(p))

	multi := Principal{Name: newPrincipalNameForTest("host", "server.example.com"), Realm: "EXAMPLE.COM"}
	assert.Equal(t, "EXAMPLE.COMhostserver.example.com", defaultSalt(multi))
}

func TestDecryptReplyCallerSuppliedKey(t *testing.T) {
	key := testKey()
	var rep messages.ASRep
	rep.CName = newPrincipalNameForTest("alice")
	rep.CRealm = "EXAMPLE.COM"

	wantPart := &messages.EncKDCRepPart{}
	decryptProc := func(k types.EncryptionKey, _ types.EncryptedData) (*messages.EncKDCRepPart, error) {
		assert.Equal(t, key.KeyType, k.KeyType)
		return wantPart, nil
	}

	got, err := decryptReply(&rep, &key, "", nil, decryptProc)
	require.NoError(t, err)
	assert.Same(t, wantPart, got)
}

func TestDecryptReplyKeyProcFallback(t *testing.T) {
	var rep messages.ASRep
	rep.CName = newPrincipalNameForTest("alice")
	rep.CRealm = "EXAMPLE.COM"
	rep.EncPart.EType = 18

	var sawSalt string
	keyProc := func(etype int32, salt string) (types.EncryptionKey, error) {
		sawSalt = salt
		assert.Equal(t, int32(18), etype)
		return testKey(), nil
	}
	decryptProc := func(types.EncryptionKey, types.EncryptedData) (*messages.EncKDCRepPart, error) {
		return &messages.EncKDCRepPart{}, nil
	}

	_, err := decryptReply(&rep, nil, "", keyProc, decryptProc)
	require.NoError(t, err)
	assert.Equal(t, "EXAMPLE.COMalice", sawSalt)
}

func TestDecryptReplyNoKeySource(t *testing.T) {
	var rep messages.ASRep
	_, err := decryptReply(&rep, nil, "", nil, nil)
	require.Error(t, err)
	kerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCrypto, kerr.Code)
}

func TestDecryptReplyPropagatesDecryptFailure(t *testing.T) {
	var rep messages.ASRep
	rep.CName = newPrincipalNameForTest("alice")
	rep.CRealm = "EXAMPLE.COM"

	keyProc := func(int32, string) (types.EncryptionKey, error) {
		return testKey(), nil
	}
	decryptProc := func(types.EncryptionKey, types.EncryptedData) (*messages.EncKDCRepPart, error) {
		return nil, errors.New("bad mac")
	}

	_, err := decryptReply(&rep, nil, "", keyProc, decryptProc)
	require.Error(t, err)
	kerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeCrypto, kerr.Code)
}

func TestZeroKey(t *testing.T) {
	k := testKey()
	zeroKey(&k)
	assert.Equal(t, int32(0), k.KeyType)
	for _, b := range k.KeyValue {
		assert.Equal(t, byte(0), b)
	}
}
