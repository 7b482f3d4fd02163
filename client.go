// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
)

// MaxTCPRetries bounds how many times a single exchange will be re-sent
// over TCP after observing RESPONSE_TOO_BIG, before giving up rather than
// looping forever against a KDC that never stops asking for TCP.
const MaxTCPRetries = 3

// GetInitialCredentials runs a complete AS exchange to completion: it
// drives ctx.Step, sends each request through send, and feeds the
// response back in, until the exchange reports completion or fails. This
// is the "get_init_creds" convenience wrapper spec.md §9 Design Notes
// describes sitting above the pure Context/Step state machine — transport
// retry policy lives here, not in Step.
func GetInitialCredentials(parent context.Context, ctx *Context, realm string, send SendToKDC) (Credentials, error) {
	defer ctx.Close()

	var (
		inReply []byte
		tcpOnly bool
		retries int
	)

	for {
		wire, toRealm, flags, err := ctx.Step(inReply)
		if err != nil {
			return Credentials{}, err
		}
		if flags&FlagComplete != 0 {
			return ctx.Credentials()
		}

		if toRealm != "" {
			realm = toRealm
		}

		forceTCP := tcpOnly || flags&FlagForceTCP != 0
		if flags&FlagForceTCP != 0 {
			retries++
			if retries > MaxTCPRetries {
				return Credentials{}, newError(ErrCodeGetInTktLoop, "too many RESPONSE_TOO_BIG retries", nil)
			}
			tcpOnly = true
		}

		reply, serr := send(parent, wire, realm, forceTCP)
		if serr != nil {
			return Credentials{}, newError(ErrCodeCrypto, "sending AS-REQ to KDC", serr)
		}
		inReply = reply
	}
}
