// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"github.com/jcmturner/gokrb5/v8/messages"
)

// stashCredentials implements C6: it copies the session key, times, ticket
// flags, addresses and re-encoded ticket from rep/enc into dst, filling in
// dst.Client/dst.Server from the (possibly canonicalized) reply principals
// only if the caller left them unset, and writes dst to cache when one is
// supplied. On any failure the session-key buffer is zeroed and dst is
// left exactly as the caller passed it in.
func stashCredentials(dst *Credentials, rep *messages.ASRep, enc *messages.EncKDCRepPart, cache CredentialCache) error {
	ticketBytes, err := rep.Ticket.Marshal()
	if err != nil {
		return newError(ErrCodeCrypto, "re-encoding ticket for credentials cache", err)
	}

	next := *dst
	if next.Client.Name.NameString == nil {
		next.Client = Principal{Name: rep.CName, Realm: rep.CRealm}
	}
	if next.Server.Name.NameString == nil {
		next.Server = Principal{Name: enc.SName, Realm: enc.SRealm}
	}

	next.SessionKey = enc.Key
	next.IsSKey = false
	next.Flags = bitStringToUint32(enc.Flags)
	next.AuthTime = enc.AuthTime
	next.StartTime = enc.StartTime
	next.EndTime = enc.EndTime
	next.RenewTill = enc.RenewTill
	next.Addresses = enc.CAddr
	next.Ticket = ticketBytes
	next.SecondTicket = nil

	if cache != nil {
		if err := cache.Store(&next); err != nil {
			zeroKey(&next.SessionKey)
			return newError(ErrCodeCrypto, "writing credentials to cache", err)
		}
	}

	*dst = next
	return nil
}

// bitStringToUint32 collapses gokrb5's ASN.1 BIT STRING ticket-flags
// representation into the plain bitmask this package's Credentials.Flags
// exposes to callers.
func bitStringToUint32(bs interface{ RightAlign() []byte }) uint32 {
	b := bs.RightAlign()
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}
