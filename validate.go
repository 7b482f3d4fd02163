// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// ValidateOptions carries the clock-handling knobs of C4 that are
// policy, not protocol: whether to trust SYNC_KDCTIME and how much skew
// to tolerate when it is not trusted.
type ValidateOptions struct {
	SyncKDCTime bool
	ClockSkew   time.Duration
	// Now is the local time replies are checked against; the zero value
	// means time.Now() at validation.
	Now time.Time

	// ClockOffset receives the process-wide clock adjustment computed
	// when SyncKDCTime is set (spec.md §4.6, §5 "process clock offset").
	// It is only ever written, never read, by validateReply.
	ClockOffset *time.Duration
}

// validateReply implements C4: integrity, freshness and canonicalization
// checks of an AS-REP (and its decrypted enc-part) against the original
// request. It returns an *Error with ErrCodeKDCRepModified or
// ErrCodeKDCRepSkew on violation. Rule 1 (defaulting starttime to authtime)
// is applied as a side effect before the remaining checks run, matching
// the source ordering noted in spec.md §9 Open Question 2, so the postdate
// and clock-skew checks below compare the defaulted start time.
func validateReply(req *Request, rep *messages.ASRep, enc *messages.EncKDCRepPart, vo ValidateOptions) error {
	if enc.StartTime.IsZero() {
		enc.StartTime = enc.AuthTime
	}

	replyClient := Principal{Name: rep.CName, Realm: rep.CRealm}
	replyServer := Principal{Name: enc.SName, Realm: enc.SRealm}
	ticketServer := Principal{Name: rep.Ticket.SName, Realm: rep.Ticket.Realm}

	canonRequested := req.KDCOptions.Has(OptCanonicalize) || isEnterprise(req.Client)
	canonOK := canonRequested && isTGT(req.Server) && isTGT(replyServer)

	if !canonOK {
		if !replyClient.equal(req.Client) {
			return newError(ErrCodeKDCRepModified, "client principal in AS-REP does not match request", nil)
		}
		if !replyServer.equal(req.Server) {
			return newError(ErrCodeKDCRepModified, "server principal in AS-REP enc-part does not match request", nil)
		}
	}

	if !replyServer.equal(ticketServer) {
		return newError(ErrCodeKDCRepModified, "server principal in enc-part does not match ticket", nil)
	}

	if req.Nonce != int32(enc.Nonce) {
		return newError(ErrCodeKDCRepModified, "nonce echo does not match request", nil)
	}

	if req.KDCOptions.Has(OptPostdated) && !req.From.IsZero() {
		if !enc.StartTime.Equal(req.From) {
			return newError(ErrCodeKDCRepModified, "start time does not match postdated request", nil)
		}
	}

	if !req.Till.IsZero() && enc.EndTime.After(req.Till) {
		return newError(ErrCodeKDCRepModified, "end time exceeds requested till", nil)
	}

	if req.KDCOptions.Has(OptRenewable) && !req.RTime.IsZero() && enc.RenewTill.After(req.RTime) {
		return newError(ErrCodeKDCRepModified, "renew-till exceeds requested rtime", nil)
	}

	if req.KDCOptions.Has(OptRenewableOK) && !req.KDCOptions.Has(OptRenewable) &&
		types.IsFlagSet(&enc.Flags, flags.KDCOptionRenewable) && !req.Till.IsZero() && enc.RenewTill.After(req.Till) {
		return newError(ErrCodeKDCRepModified, "renew-till exceeds requested till under RENEWABLE-OK", nil)
	}

	now := vo.Now
	if now.IsZero() {
		now = time.Now()
	}

	if vo.SyncKDCTime {
		if vo.ClockOffset != nil {
			off := enc.AuthTime.Sub(now)
			*vo.ClockOffset = off
		}
		return nil
	}

	if req.From.IsZero() {
		skew := enc.StartTime.Sub(now)
		if skew < 0 {
			skew = -skew
		}
		if skew > vo.ClockSkew {
			return newError(ErrCodeKDCRepSkew, "KDC clock skew exceeds tolerance", nil)
		}
	}

	return nil
}

