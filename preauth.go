// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"github.com/jcmturner/gokrb5/v8/crypto"
	"github.com/jcmturner/gokrb5/v8/iana/keyusage"
	"github.com/jcmturner/gokrb5/v8/iana/patype"
	"github.com/jcmturner/gokrb5/v8/types"
)

// PreauthMechanism is the external boundary spec.md §4.9/§9 describes as
// krb5_do_preauth/krb5_obtain_padata/krb5_process_padata: the core treats
// it as opaque and only calls through Prep/TryAgain. ctx is the exchange's
// Context, which a mechanism may read (for the client principal, current
// salt/etype) and update (to change ctx.asKey, ctx.salt, ctx.s2kparams or
// ctx.etype ahead of decryption).
type PreauthMechanism interface {
	// PADataType identifies the padata type this mechanism produces.
	PADataType() int32
	// Prep produces this mechanism's outbound padata for the next
	// request, given the body bytes that must be covered by any
	// checksum/MAC the mechanism computes.
	Prep(ctx *Context, reqBody []byte) (*types.PAData, error)
	// TryAgain is invoked when the prior error was not
	// PREAUTH_REQUIRED; eData is that error's e-data. It reports
	// whether it produced a usable padata entry.
	TryAgain(ctx *Context, eData []byte, reqBody []byte) (*types.PAData, bool, error)
}

// encTimestampMechanism implements PA-ENC-TIMESTAMP (RFC 4120 §5.2.7.2),
// the one pre-auth mechanism the original MIT source always tries inline
// rather than through a plugin (spec.md §12, grounded on the
// jpexltd-gokrb5 ASExchange.go reference file in the retrieval pack).
type encTimestampMechanism struct{}

func (encTimestampMechanism) PADataType() int32 { return patype.PA_ENC_TIMESTAMP }

func (m encTimestampMechanism) Prep(ctx *Context, _ []byte) (*types.PAData, error) {
	if ctx.asKey.KeyType == 0 && ctx.caps.GAK != nil {
		salt := ctx.salt
		if salt == "" {
			salt = defaultSalt(ctx.request.Client)
		}
		key, err := ctx.caps.GAK(ctx.client, salt, ctx.s2kparams, ctx.etype)
		if err != nil {
			return nil, newError(ErrCodePreauthFailed, "get-as-key for PA-ENC-TIMESTAMP", err)
		}
		ctx.asKey = key
	}
	if ctx.asKey.KeyType == 0 {
		return nil, newError(ErrCodePreauthFailed, "no as_key available for PA-ENC-TIMESTAMP", nil)
	}

	tsBytes, err := types.GetPAEncTSEncAsnMarshalled()
	if err != nil {
		return nil, newError(ErrCodePreauthFailed, "marshalling PA-ENC-TS-ENC", err)
	}

	encData, err := crypto.GetEncryptedData(tsBytes, ctx.asKey, keyusage.AS_REQ_PA_ENC_TIMESTAMP, 0)
	if err != nil {
		return nil, newError(ErrCodePreauthFailed, "encrypting PA-ENC-TIMESTAMP", err)
	}

	valueBytes, err := encData.Marshal()
	if err != nil {
		return nil, newError(ErrCodePreauthFailed, "marshalling encrypted PA-ENC-TIMESTAMP", err)
	}

	return &types.PAData{PADataType: patype.PA_ENC_TIMESTAMP, PADataValue: valueBytes}, nil
}

func (m encTimestampMechanism) TryAgain(ctx *Context, eData []byte, reqBody []byte) (*types.PAData, bool, error) {
	// Encrypted timestamp never needs the previous error's e-data: it is
	// unconditionally retryable as long as an as_key is available.
	if ctx.asKey.KeyType == 0 {
		return nil, false, nil
	}
	pa, err := m.Prep(ctx, reqBody)
	if err != nil {
		return nil, false, err
	}
	return pa, true, nil
}

// defaultPreauthMechanisms is the built-in mechanism set a Context uses
// when the caller does not register its own via Capabilities.Preauth.
func defaultPreauthMechanisms() []PreauthMechanism {
	return []PreauthMechanism{encTimestampMechanism{}}
}

// findMechanism returns the registered mechanism for padataType, if any.
func findMechanism(mechs []PreauthMechanism, padataType int32) PreauthMechanism {
	for _, m := range mechs {
		if m.PADataType() == padataType {
			return m
		}
	}
	return nil
}

// preauthPrep implements C8's "Prep" entry point: for each hint in
// preauthToUse (already sorted by preference), ask the matching
// registered mechanism to produce padata for the next request. Hints with
// no registered mechanism are skipped rather than treated as fatal, since
// a KDC commonly advertises more pre-auth types than any one client
// implements.
func preauthPrep(ctx *Context, reqBody []byte) (types.PADataSequence, error) {
	var out types.PADataSequence
	for _, hint := range ctx.preauthToUse {
		mech := findMechanism(ctx.caps.preauthMechanisms(), hint.PADataType)
		if mech == nil {
			continue
		}
		pa, err := mech.Prep(ctx, reqBody)
		if err != nil {
			return nil, err
		}
		if pa != nil {
			out = append(out, *pa)
		}
	}
	return out, nil
}

// preauthTryAgain implements C8's "Try-again" entry point: invoked when
// the last error was not PREAUTH_REQUIRED. It hands the error's e-data to
// every registered mechanism until one produces a usable padata entry.
// If none does, the original error is surfaced to the caller.
func preauthTryAgain(ctx *Context, eData []byte, reqBody []byte) (types.PADataSequence, bool, error) {
	for _, mech := range ctx.caps.preauthMechanisms() {
		pa, ok, err := mech.TryAgain(ctx, eData, reqBody)
		if err != nil {
			return nil, false, err
		}
		if ok && pa != nil {
			return types.PADataSequence{*pa}, true, nil
		}
	}
	return nil, false, nil
}
