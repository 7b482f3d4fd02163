// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jcmturner/gokrb5/v8/iana/errorcode"
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/messages"
)

func TestClassifyReplyKRBError(t *testing.T) {
	kerr := messages.NewKRBError(
		newPrincipalNameForTest("krbtgt", "EXAMPLE.COM"),
		"EXAMPLE.COM",
		errorcode.KDC_ERR_PREAUTH_REQUIRED,
		"preauth required",
	)
	raw, err := kerr.Marshal()
	require.NoError(t, err)

	cl, err := classifyReply(raw)
	require.NoError(t, err)
	require.NotNil(t, cl.Error)
	assert.Nil(t, cl.ASRep)
	assert.Equal(t, int32(errorcode.KDC_ERR_PREAUTH_REQUIRED), cl.Error.ErrorCode)
}

func TestClassifyReplyASRep(t *testing.T) {
	var rep messages.ASRep
	rep.MsgType = msgtype.KRB_AS_REP
	rep.PVNO = 5
	rep.CRealm = "EXAMPLE.COM"
	rep.CName = newPrincipalNameForTest("alice")
	rep.Ticket.Realm = "EXAMPLE.COM"
	rep.Ticket.SName = newPrincipalNameForTest("krbtgt", "EXAMPLE.COM")
	rep.Ticket.TktVNO = 5
	rep.EncPart.EType = 18

	raw, err := rep.Marshal()
	require.NoError(t, err)

	cl, err := classifyReply(raw)
	require.NoError(t, err)
	require.NotNil(t, cl.ASRep)
	assert.Nil(t, cl.Error)
}

func TestClassifyReplyV4(t *testing.T) {
	raw := []byte{4, 10, 0, 0}
	_, err := classifyReply(raw)
	require.Error(t, err)
	kerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeV4Reply, kerr.Code)
}

func TestClassifyReplyMalformed(t *testing.T) {
	_, err := classifyReply([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
	kerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMsgTypeMismatch, kerr.Code)
}

func TestLooksLikeV4Reply(t *testing.T) {
	myassert(t, looksLikeV4Reply([]byte{4, 10}), "expected a v4-reply match")
	myassert(t, looksLikeV4Reply([]byte{4, 11}), "low bit of second byte must be ignored")
	assert.False(t, looksLikeV4Reply([]byte{5, 10}))
	assert.False(t, looksLikeV4Reply([]byte{4}))
}
