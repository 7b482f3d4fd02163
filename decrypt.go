// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/keyusage"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// defaultSalt implements the standard string2key salt rule (spec.md §4.5,
// Glossary "Salt"): realm concatenated with each name component, with no
// delimiters between them.
func defaultSalt(p Principal) string {
	salt := p.Realm
	for _, c := range p.Name.NameString {
		salt += c
	}
	return salt
}

// decryptReply implements C5. key, when non-nil, is used directly
// (caller-supplied); otherwise keyProc derives it from salt, or — if salt
// is empty — from the salt computed from the KDC-canonicalized client
// principal in rep. decryptProc performs the actual authenticated
// decryption, a thin wrapper over gokrb5's own enctype machinery (the
// block-cipher primitives themselves are an explicit out-of-scope
// external collaborator, spec.md §1). On any failure the key this
// function derived (but not a caller-supplied one) is zeroed before the
// error is returned.
func decryptReply(rep *messages.ASRep, key *types.EncryptionKey, salt string, keyProc KeyProc, decryptProc DecryptProc) (*messages.EncKDCRepPart, error) {
	var derived bool
	var useKey types.EncryptionKey

	switch {
	case key != nil:
		useKey = *key
	case keyProc != nil:
		if salt == "" {
			salt = defaultSalt(Principal{Name: rep.CName, Realm: rep.CRealm})
		}
		k, err := keyProc(rep.EncPart.EType, salt)
		if err != nil {
			return nil, newError(ErrCodeCrypto, "deriving decryption key", err)
		}
		useKey = k
		derived = true
	default:
		return nil, newError(ErrCodeCrypto, "no key available to decrypt AS-REP", nil)
	}

	encPart, err := decryptProc(useKey, rep.EncPart)
	if err != nil {
		if derived {
			zeroKey(&useKey)
		}
		return nil, newError(ErrCodeCrypto, "decrypting AS-REP enc-part", err)
	}

	return encPart, nil
}

// zeroKey overwrites key material before it is released, per spec.md §3
// invariant 5 and §5's teardown hygiene requirement.
func zeroKey(k *types.EncryptionKey) {
	for i := range k.KeyValue {
		k.KeyValue[i] = 0
	}
	k.KeyType = 0
}

// defaultDecryptProc is the library-provided DecryptProc. It derives the
// right enctype implementation from the key and hands decryption off to
// gokrb5, then unmarshals the plaintext into an EncKDCRepPart — the ASN.1
// codec itself is an out-of-scope external collaborator (spec.md §1).
func defaultDecryptProc(key types.EncryptionKey, encPart types.EncryptedData) (*messages.EncKDCRepPart, error) {
	etype, err := crypto.GetEtype(key.KeyType)
	if err != nil {
		return nil, err
	}

	plain, err := etype.DecryptMessage(key.KeyValue, encPart.Cipher, keyusage.AS_REP_ENCPART)
	if err != nil {
		return nil, err
	}

	var decoded messages.EncKDCRepPart
	if err := decoded.Unmarshal(plain); err != nil {
		return nil, err
	}
	return &decoded, nil
}
