// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullArmorIsNoOp(t *testing.T) {
	req := &Request{}
	require.NoError(t, NullArmor{}.ArmorRequest(req))
	assert.Empty(t, req.PAData)

	body := []byte("body")
	out, err := NullArmor{}.PrepReqBody(req, body)
	require.NoError(t, err)
	assert.Equal(t, body, out)

	key := testKey()
	assert.Equal(t, key, NullArmor{}.ReplyKey(nil, key))

	strong := testKey()
	strong.KeyType = 99
	assert.Equal(t, strong, NullArmor{}.ReplyKey(&strong, key))

	pa, retry := NullArmor{}.ProcessError(nil)
	assert.Nil(t, pa)
	assert.False(t, retry)
}

func TestFixedPADataArmorTagsRequest(t *testing.T) {
	armor := fixedPADataArmor{padataType: 133, value: []byte{1, 2, 3}}
	req := &Request{}
	require.NoError(t, armor.ArmorRequest(req))
	require.Len(t, req.PAData, 1)
	assert.Equal(t, int32(133), req.PAData[0].PADataType)
}

func TestFixedPADataArmorPrepReqBodyWrapsBytes(t *testing.T) {
	armor := fixedPADataArmor{}
	out, err := armor.PrepReqBody(&Request{}, []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.NotEqual(t, []byte("hello"), out)
}

func TestCapabilitiesArmorFallback(t *testing.T) {
	var c Capabilities
	_, ok := c.armor().(NullArmor)
	assert.True(t, ok)

	custom := fixedPADataArmor{padataType: 1}
	c.Armor = custom
	assert.Equal(t, custom, c.armor())
}
