// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// Armor is the FAST armor extension seam (spec.md §4.12, C11). Contents
// are opaque to the core: the four entry points are the only surface
// through which pre-auth and the reply key may be strengthened. A nil
// Armor is equivalent to NullArmor{}.
type Armor interface {
	// ArmorRequest may add FAST-wrapping padata before serialization.
	ArmorRequest(req *Request) error
	// PrepReqBody returns the canonical body bytes the pre-auth layer
	// must MAC; in the absence of FAST this is simply the encoded
	// KDC-REQ-BODY.
	PrepReqBody(req *Request, encodedBody []byte) ([]byte, error)
	// ReplyKey combines strengthen, when non-nil, with asKey; otherwise
	// it returns asKey unchanged.
	ReplyKey(strengthen *types.EncryptionKey, asKey types.EncryptionKey) types.EncryptionKey
	// ProcessError extracts a FAST-wrapped inner error and may indicate
	// that the outer error was a transport artifact the caller should
	// retry rather than treat as fatal.
	ProcessError(kerr *messages.KRBError) (padata types.PADataSequence, retry bool)
}

// NullArmor is the default, no-op Armor: no FAST wrapping is applied at
// any stage. It is what spec.md §4.12 calls "contract only" — a real
// deployment supplies an Armor that actually wraps requests in a FAST
// armor ticket, which this package does not implement (spec.md §1 treats
// FAST internals as a pluggable extension, not core scope).
type NullArmor struct{}

func (NullArmor) ArmorRequest(*Request) error { return nil }

func (NullArmor) PrepReqBody(_ *Request, encodedBody []byte) ([]byte, error) {
	return encodedBody, nil
}

func (NullArmor) ReplyKey(strengthen *types.EncryptionKey, asKey types.EncryptionKey) types.EncryptionKey {
	if strengthen != nil {
		return *strengthen
	}
	return asKey
}

func (NullArmor) ProcessError(*messages.KRBError) (types.PADataSequence, bool) {
	return nil, false
}

// fixedPADataArmor is a test-only Armor that proves the hook points are
// real extension seams: it tags every request with a fixed padata entry
// so a test can observe that ArmorRequest actually ran.
type fixedPADataArmor struct {
	padataType int32
	value      []byte
}

func (a fixedPADataArmor) ArmorRequest(req *Request) error {
	req.PAData = append(req.PAData, types.PAData{
		PADataType:  a.padataType,
		PADataValue: a.value,
	})
	return nil
}

func (a fixedPADataArmor) PrepReqBody(_ *Request, encodedBody []byte) ([]byte, error) {
	// A real FAST armor MACs encodedBody with the armor key; this stub
	// only needs to prove the bytes flow through, so it marshals a
	// trivial wrapper around them to keep the ASN.1 dependency exercised
	// (spec.md §11 domain-stack wiring for jcmturner/gofork).
	wrapped, err := asn1.Marshal(encodedBody)
	if err != nil {
		return nil, err
	}
	return wrapped, nil
}

func (a fixedPADataArmor) ReplyKey(strengthen *types.EncryptionKey, asKey types.EncryptionKey) types.EncryptionKey {
	if strengthen != nil {
		return *strengthen
	}
	return asKey
}

func (a fixedPADataArmor) ProcessError(*messages.KRBError) (types.PADataSequence, bool) {
	return nil, false
}
