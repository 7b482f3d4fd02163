// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/jcmturner/gokrb5/v8/iana/errorcode"
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

func TestGetInitialCredentialsHappyPath(t *testing.T) {
	now := time.Now()
	client := NewPrincipal("EXAMPLE.COM", "alice")

	var server Principal
	var nonce int32

	caps := Capabilities{
		KeyProc: func(int32, string) (types.EncryptionKey, error) {
			return testKey(), nil
		},
		DecryptProc: func(types.EncryptionKey, types.EncryptedData) (*messages.EncKDCRepPart, error) {
			return &messages.EncKDCRepPart{
				SName:     server.Name,
				SRealm:    server.Realm,
				Nonce:     int(nonce),
				AuthTime:  now,
				StartTime: now,
				EndTime:   now.Add(9 * time.Hour),
			}, nil
		},
	}

	ctx, err := NewContext(client, Principal{}, caps, nil, Options{}, ValidateOptions{Now: now, ClockSkew: time.Hour})
	require.NoError(t, err)

	var sendCalls int
	send := SendToKDC(func(_ context.Context, wire []byte, realm string, tcpOnly bool) ([]byte, error) {
		sendCalls++
		require.NotEmpty(t, wire)
		assert.Equal(t, "EXAMPLE.COM", realm)
		assert.False(t, tcpOnly)

		server = ctx.request.Server
		nonce = ctx.request.Nonce

		var rep messages.ASRep
		rep.MsgType = msgtype.KRB_AS_REP
		rep.PVNO = 5
		rep.CName = client.Name
		rep.CRealm = client.Realm
		rep.Ticket.SName = server.Name
		rep.Ticket.Realm = server.Realm
		rep.Ticket.TktVNO = 5
		rep.EncPart.EType = 18
		raw, merr := rep.Marshal()
		require.NoError(t, merr)
		return raw, nil
	})

	creds, err := GetInitialCredentials(context.Background(), ctx, "EXAMPLE.COM", send)
	require.NoError(t, err)
	assert.Equal(t, 1, sendCalls)
	assert.Equal(t, client, creds.Client)
}

func TestGetInitialCredentialsPropagatesSendError(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	ctx, err := NewContext(client, Principal{}, Capabilities{}, nil, Options{}, ValidateOptions{})
	require.NoError(t, err)

	boom := errors.New("network unreachable")
	send := SendToKDC(func(context.Context, []byte, string, bool) ([]byte, error) {
		return nil, boom
	})

	_, err = GetInitialCredentials(context.Background(), ctx, "EXAMPLE.COM", send)
	require.Error(t, err)
	assert.Equal(t, ErrCodeCrypto, err.(*Error).Code)
}

func TestGetInitialCredentialsForcesTCPAfterResponseTooBig(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	ctx, err := NewContext(client, Principal{}, Capabilities{}, nil, Options{}, ValidateOptions{})
	require.NoError(t, err)

	var gotTCP []bool
	send := SendToKDC(func(_ context.Context, _ []byte, _ string, tcpOnly bool) ([]byte, error) {
		gotTCP = append(gotTCP, tcpOnly)
		if len(gotTCP) == 1 {
			kerr := messages.NewKRBError(
				ctx.request.Server.Name, ctx.request.Server.Realm,
				errorcode.KRB_ERR_RESPONSE_TOO_BIG, "too big",
			)
			return kerr.Marshal()
		}
		// Second attempt: stop the exchange with a transport error, just
		// enough to prove the retry was actually sent over TCP.
		return nil, errors.New("stop here, tcp retry already observed")
	})

	_, err = GetInitialCredentials(context.Background(), ctx, "EXAMPLE.COM", send)
	require.Error(t, err)
	require.Len(t, gotTCP, 2)
	assert.False(t, gotTCP[0])
	assert.True(t, gotTCP[1], "the resend after RESPONSE_TOO_BIG must be forced over TCP")
}

func TestGetInitialCredentialsGivesUpAfterMaxTCPRetries(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	ctx, err := NewContext(client, Principal{}, Capabilities{}, nil, Options{}, ValidateOptions{})
	require.NoError(t, err)

	send := SendToKDC(func(context.Context, []byte, string, bool) ([]byte, error) {
		kerr := messages.NewKRBError(
			ctx.request.Server.Name, ctx.request.Server.Realm,
			errorcode.KRB_ERR_RESPONSE_TOO_BIG, "too big",
		)
		return kerr.Marshal()
	})

	_, err = GetInitialCredentials(context.Background(), ctx, "EXAMPLE.COM", send)
	require.Error(t, err)
	assert.Equal(t, ErrCodeGetInTktLoop, err.(*Error).Code)
}
