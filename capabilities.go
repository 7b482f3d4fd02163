// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"

	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// KeyProc derives a long-term key from an enctype and salt, without access
// to the caller's secret directly (spec.md §6 key_proc). It is invoked by
// the decryptor (C5) when no pre-derived key is supplied.
type KeyProc func(etype int32, salt string) (types.EncryptionKey, error)

// DecryptProc performs authenticated decryption of an AS-REP enc-part
// (spec.md §6 decrypt_proc). A correct implementation rejects tampering
// rather than silently returning garbage.
type DecryptProc func(key types.EncryptionKey, encPart types.EncryptedData) (*messages.EncKDCRepPart, error)

// GAKFunc (get-as-key) derives as_key from the caller's long-term secret
// plus the current salt/s2kparams/etype negotiation state (spec.md §6
// gak_fct). It is invoked once up front when a pre-auth mechanism needs
// as_key and none is set yet, and again, at most once, if the first decrypt
// attempt fails — giving pre-auth mechanisms that alter the salt or etype a
// chance to be reflected in a retried key derivation.
type GAKFunc func(client Principal, salt string, s2kparams []byte, etype int32) (types.EncryptionKey, error)

// Prompter is the interactive prompt callback (spec.md §6 prompter). It
// may block on user input and may return an error when the user cancels.
type Prompter interface {
	Prompt(prompt string, hidden bool) (string, error)
}

// SendToKDC is the transport capability (spec.md §6 sendto_kdc). tcpOnly
// is set after the driver has observed RESPONSE_TOO_BIG for this exchange.
// The core never calls this directly; it is used by the convenience
// driver in client.go.
type SendToKDC func(ctx context.Context, packet []byte, realm string, tcpOnly bool) ([]byte, error)

// CredentialCache is the narrow interface through which the stasher (C6)
// may persist completed credentials. The cache's own storage format and
// locking are out of scope for this package (spec.md §1 Out of scope).
type CredentialCache interface {
	Store(creds *Credentials) error
}

// Capabilities bundles the external collaborators a Context needs for one
// AS exchange, replacing the "callback soup" of discrete function pointers
// the original C implementation threads through every call with a single
// capability record the state machine borrows for the exchange's duration
// (spec.md §9 Design Notes).
type Capabilities struct {
	KeyProc     KeyProc
	DecryptProc DecryptProc
	GAK         GAKFunc
	Prompter    Prompter
	Cache       CredentialCache
	Armor       Armor
	Preauth     []PreauthMechanism
}

// preauthMechanisms returns the caller-registered mechanisms, falling
// back to the built-in PA-ENC-TIMESTAMP mechanism when none were
// registered.
func (c Capabilities) preauthMechanisms() []PreauthMechanism {
	if len(c.Preauth) > 0 {
		return c.Preauth
	}
	return defaultPreauthMechanisms()
}

// armor returns the caller-supplied Armor, or NullArmor when none was
// supplied (spec.md §4.12: FAST is "contract only" by default).
func (c Capabilities) armor() Armor {
	if c.Armor != nil {
		return c.Armor
	}
	return NullArmor{}
}
