// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
)

func TestKDCOptionsHas(t *testing.T) {
	o := OptForwardable | OptCanonicalize
	assert.True(t, o.Has(OptForwardable))
	assert.True(t, o.Has(OptCanonicalize))
	assert.False(t, o.Has(OptRenewable))
	assert.True(t, o.Has(OptForwardable|OptCanonicalize))
}

func TestResolveEnctypesDefault(t *testing.T) {
	got := resolveEnctypes(nil)
	assert.Equal(t, defaultEnctypes, got)
}

func TestResolveEnctypesCallerOrderPreserved(t *testing.T) {
	got := resolveEnctypes([]int32{etypeID.RC4_HMAC, etypeID.AES256_CTS_HMAC_SHA1_96})
	assert.Equal(t, int32(etypeID.RC4_HMAC), got[0])
	assert.Equal(t, int32(etypeID.AES256_CTS_HMAC_SHA1_96), got[1])
	assert.Len(t, got, len(defaultEnctypes))
}

func TestResolveEnctypesDropsUnsupported(t *testing.T) {
	got := resolveEnctypes([]int32{9999})
	assert.Equal(t, defaultEnctypes, got)
}

func TestFreshNonceIsNonNegativeAnd31Bit(t *testing.T) {
	for i := 0; i < 50; i++ {
		n := freshNonce()
		assert.GreaterOrEqual(t, n, int32(0))
		assert.Less(t, int64(n), int64(1<<31))
	}
}

func TestBuildRequestDefaults(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	server := tgtServerPrincipal("EXAMPLE.COM")
	now := time.Now()

	req := buildRequest(client, server, Options{}, nil, now, 42)

	assert.Equal(t, client, req.Client)
	assert.Equal(t, server, req.Server)
	assert.Equal(t, int32(42), req.Nonce)
	assert.Equal(t, now.Add(24*time.Hour), req.Till)
	assert.False(t, req.KDCOptions.Has(OptForwardable))
	assert.True(t, req.From.IsZero())
	assert.Nil(t, req.Addresses)
}

func TestBuildRequestForwardableAndRenewable(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	server := tgtServerPrincipal("EXAMPLE.COM")
	now := time.Now()

	fwd := true
	opts := Options{
		Forwardable:   &fwd,
		RenewLifetime: 48 * time.Hour,
		TicketLifetime: 8 * time.Hour,
	}
	req := buildRequest(client, server, opts, nil, now, 1)

	assert.True(t, req.KDCOptions.Has(OptForwardable))
	assert.True(t, req.KDCOptions.Has(OptRenewable))
	assert.Equal(t, now.Add(8*time.Hour), req.Till)
	assert.Equal(t, now.Add(48*time.Hour), req.RTime)
}

func TestBuildRequestRenewableOK(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	server := tgtServerPrincipal("EXAMPLE.COM")
	now := time.Now()

	renewableOK := true
	req := buildRequest(client, server, Options{RenewableOK: &renewableOK}, nil, now, 1)

	assert.True(t, req.KDCOptions.Has(OptRenewableOK))
	assert.False(t, req.KDCOptions.Has(OptRenewable), "RenewableOK alone must not imply Renewable")
}

func TestBuildRequestPostdated(t *testing.T) {
	client := NewPrincipal("EXAMPLE.COM", "alice")
	server := tgtServerPrincipal("EXAMPLE.COM")
	now := time.Now()
	start := now.Add(2 * time.Hour)

	req := buildRequest(client, server, Options{StartTime: start}, nil, now, 1)

	assert.True(t, req.KDCOptions.Has(OptPostdated))
	assert.True(t, req.KDCOptions.Has(OptAllowPostdate))
	assert.Equal(t, start.Unix(), req.From.Unix())
}
