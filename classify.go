// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/messages"
)

// classified is the outcome of C9: exactly one of Error or ASRep is set,
// unless classifyReply also returned an error.
type classified struct {
	Error *messages.KRBError
	ASRep *messages.ASRep
}

// classifyReply implements C9: it tells a KRB-ERROR apart from an AS-REP,
// detects a Kerberos 4 reply by its distinctive first two bytes rather
// than letting it fall through as a generic parse failure, and rejects
// anything else as malformed.
func classifyReply(raw []byte) (classified, error) {
	var kerr messages.KRBError
	if err := kerr.Unmarshal(raw); err == nil {
		return classified{Error: &kerr}, nil
	}

	if looksLikeV4Reply(raw) {
		return classified{}, newError(ErrCodeV4Reply, "response looks like a Kerberos 4 reply", nil)
	}

	var rep messages.ASRep
	if err := rep.Unmarshal(raw); err != nil {
		return classified{}, newError(ErrCodeMsgTypeMismatch, "could not parse response as AS-REP or KRB-ERROR", err)
	}

	if rep.MsgType != msgtype.KRB_AS_REP {
		return classified{}, newError(ErrCodeMsgTypeMismatch, "unexpected msg-type in AS-REP", nil)
	}

	return classified{ASRep: &rep}, nil
}

// looksLikeV4Reply applies the heuristic from spec.md §6: the first byte
// is 4, and the second byte with its low bit cleared is 5<<1 (0x0a). This
// must be checked before treating an unparsable response as malformed, or
// a v4 KDC's reply gets misreported as a protocol error.
func looksLikeV4Reply(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == 4 && raw[1]&0xfe == 5<<1
}
