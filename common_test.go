// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/types"
)

// myassert wraps testify's assert with an immediate t.Fatalf on failure, the
// same fail-fast helper shape the teacher's own test suite uses so a bad
// precondition doesn't cascade into a wall of unrelated failures.
func myassert(t *testing.T, cond bool, format string, args ...interface{}) {
	t.Helper()
	if !assert.True(t, cond) {
		t.Fatalf(format, args...)
	}
}

func newPrincipalNameForTest(components ...string) types.PrincipalName {
	return types.PrincipalName{
		NameType:   nametype.KRB_NT_PRINCIPAL,
		NameString: components,
	}
}

func testKey() types.EncryptionKey {
	return types.EncryptionKey{
		KeyType:  18, // AES256_CTS_HMAC_SHA1_96
		KeyValue: make([]byte, 32),
	}
}
