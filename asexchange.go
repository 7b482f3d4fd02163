// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/errorcode"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"
)

// MaxInTktLoops bounds the total number of pre-auth and referral round
// trips a single exchange may take (spec.md §3 invariant 2, §4.11).
const MaxInTktLoops = 16

// MaxReferralHops bounds the number of WRONG_REALM referrals a single
// exchange will follow (spec.md §3 invariant 3), per the referrals draft
// this module's source tree is modelled on.
const MaxReferralHops = 10

// state is the driver's position in the exchange.
type state uint8

const (
	stateNeedRequest state = iota
	stateAwaitReply
	stateComplete
	stateFailed
)

// Flags is returned by Step alongside the next request to tell the caller
// what to do with it.
type Flags uint8

const (
	// FlagComplete means credentials are ready; Context.Credentials may
	// be called and Step must not be called again.
	FlagComplete Flags = 1 << iota
	// FlagForceTCP means the caller observed (or is re-sending after)
	// RESPONSE_TOO_BIG and should deliver this request over TCP.
	FlagForceTCP
)

// Context is the persistent per-exchange state (spec.md §3 "Init-creds
// context"). It is single-threaded: a Context must not be stepped
// concurrently (spec.md §5).
type Context struct {
	caps   Capabilities
	cfg    *ConfigSource
	client Principal
	server Principal
	opts   Options

	tgtRequest bool

	request Request
	reply   *messages.ASRep
	errRep  *messages.KRBError
	encPart *messages.EncKDCRepPart

	preauthToUse types.PADataSequence
	asKey        types.EncryptionKey
	salt         string
	s2kparams    []byte
	etype        int32

	priorReqBody []byte
	priorReqWire []byte

	loopCount     int
	referralCount int
	requestTime   time.Time

	vopts ValidateOptions

	state state
	creds Credentials
}

// NewContext creates a Context for an AS exchange requesting credentials
// for server on behalf of client. A zero-value server (no name
// components) requests the default TGT: krbtgt/client.Realm@client.Realm.
func NewContext(client, server Principal, caps Capabilities, cfg *ConfigSource, opts Options, vopts ValidateOptions) (*Context, error) {
	tgtRequest := len(server.Name.NameString) == 0
	if tgtRequest {
		server = tgtServerPrincipal(client.Realm)
	}

	if client.Realm != server.Realm {
		return nil, newError(ErrCodeRealmMismatch, "client and server realm differ on entry", nil)
	}

	if vopts.ClockSkew == 0 {
		vopts.ClockSkew = 10 * time.Second
	}

	return &Context{
		caps:       caps,
		cfg:        cfg,
		client:     client,
		server:     server,
		opts:       opts,
		tgtRequest: tgtRequest,
		etype:      opts.EType0(),
		salt:       opts.Salt,
		s2kparams:  opts.S2KParams,
		vopts:      vopts,
		state:      stateNeedRequest,
	}, nil
}

// EType0 returns the caller's first preferred enctype, or 0 if none was
// supplied, used to seed the pre-negotiation etype before any KDC
// interaction has occurred.
func (o Options) EType0() int32 {
	if len(o.EType) == 0 {
		return 0
	}
	return o.EType[0]
}

// Step drives the exchange one round trip. inReply is the raw bytes
// received from the last SendToKDC call, or nil on the very first call.
// It returns the next request to send, the realm to address it to, and
// flags describing what the caller should do next.
func (c *Context) Step(inReply []byte) (outRequest []byte, realm string, flags Flags, err error) {
	if c.state == stateComplete {
		return nil, "", FlagComplete, nil
	}
	if c.state == stateFailed {
		return nil, "", 0, newError(ErrCodeGetInTktLoop, "context already failed, cannot be restepped", nil)
	}

	if len(inReply) > 0 {
		cont, rflags, cerr := c.consumeReply(inReply)
		if cerr != nil {
			c.state = stateFailed
			return nil, "", 0, cerr
		}
		if !cont {
			// finalize() already drove the context to stateComplete.
			return nil, "", FlagComplete, nil
		}
		if rflags&FlagForceTCP != 0 {
			// RESPONSE_TOO_BIG: resend the exact previous bytes, no
			// new loop iteration charged (spec.md §4.11 tie-break).
			c.state = stateAwaitReply
			return c.priorReqWire, c.request.Server.Realm, FlagForceTCP, nil
		}
	}

	wire, err := c.stepRequest()
	if err != nil {
		c.state = stateFailed
		return nil, "", 0, err
	}

	c.state = stateAwaitReply
	return wire, c.request.Server.Realm, 0, nil
}

// consumeReply implements spec.md §4.11 step 1. It returns cont=true when
// the caller should proceed to build another request (pre-auth retry or
// referral), or cont=false when the exchange has been driven to
// completion by a received AS-REP.
func (c *Context) consumeReply(raw []byte) (cont bool, flags Flags, err error) {
	cl, cerr := classifyReply(raw)
	if cerr != nil {
		return false, 0, cerr
	}

	if cl.Error != nil {
		return c.consumeError(cl.Error)
	}

	if ferr := c.finalize(cl.ASRep); ferr != nil {
		return false, 0, ferr
	}
	return false, 0, nil
}

func (c *Context) consumeError(kerr *messages.KRBError) (cont bool, flags Flags, err error) {
	switch kerr.ErrorCode {
	case errorcode.KRB_ERR_RESPONSE_TOO_BIG:
		return true, FlagForceTCP, nil

	case errorcode.KDC_ERR_PREAUTH_REQUIRED:
		pa, perr := decodePaDataHints(kerr.EData)
		if perr != nil {
			return false, 0, perr
		}
		c.preauthToUse = sortPAData(pa, c.preferredPreauthTypes())
		return true, 0, nil

	case errorcode.KDC_ERR_C_PRINCIPAL_UNKNOWN:
		c.errRep = kerr
		return false, 0, newClientUnknownError(kerr.ErrorCode, c.request.Client.String())

	case errorcode.KDC_ERR_WRONG_REALM:
		if !c.request.KDCOptions.Has(OptCanonicalize) {
			c.errRep = kerr
			return false, 0, newKDCError(kerr.ErrorCode, kerr.EText)
		}
		if c.referralCount >= MaxReferralHops || kerr.CRealm == "" {
			return false, 0, newError(ErrCodeWrongRealm, "referral limit reached or no client realm in error", nil)
		}
		c.request.Client.Realm = kerr.CRealm
		c.request.Server = rewriteServerRealm(c.request.Server, kerr.CRealm, c.tgtRequest)
		c.referralCount++
		return true, 0, nil

	default:
		armorPA, retry := c.caps.armor().ProcessError(kerr)
		if retry {
			if len(armorPA) > 0 {
				c.preauthToUse = sortPAData(armorPA, c.preferredPreauthTypes())
			}
			return true, 0, nil
		}

		c.errRep = kerr
		pa, retried, perr := preauthTryAgain(c, kerr.EData, c.priorReqBody)
		if perr != nil {
			return false, 0, perr
		}
		if retried {
			c.request.PAData = pa
			return true, 0, nil
		}

		return false, 0, newKDCError(kerr.ErrorCode, kerr.EText)
	}
}

// stepRequest implements spec.md §4.11 step 2.
func (c *Context) stepRequest() ([]byte, error) {
	if c.loopCount >= MaxInTktLoops {
		return nil, newError(ErrCodeGetInTktLoop, "exceeded maximum pre-auth/referral round trips", nil)
	}

	if c.tgtRequest {
		c.request.Server = tgtServerPrincipal(c.request.Client.Realm)
	}

	if c.loopCount == 0 {
		c.requestTime = time.Now()
		c.request = buildRequest(c.client, c.server, c.opts, c.cfg, c.requestTime, freshNonce())
		if err := c.caps.armor().ArmorRequest(&c.request); err != nil {
			return nil, newError(ErrCodePreauthFailed, "armoring initial request", err)
		}
	} else {
		c.request.Nonce = freshNonce()
	}

	body, err := encodeReqBody(&c.request)
	if err != nil {
		return nil, newError(ErrCodeCrypto, "encoding request body", err)
	}
	body, err = c.caps.armor().PrepReqBody(&c.request, body)
	if err != nil {
		return nil, newError(ErrCodePreauthFailed, "preparing request body for pre-auth", err)
	}
	c.priorReqBody = body

	var pa types.PADataSequence
	if c.errRep == nil {
		pa, err = preauthPrep(c, body)
	} else {
		pa, _, err = preauthTryAgain(c, c.errRep.EData, body)
	}
	if err != nil {
		return nil, err
	}
	if len(pa) > 0 {
		c.request.PAData = append(c.request.PAData, pa...)
	}

	wire, err := encodeASReq(&c.request)
	if err != nil {
		return nil, newError(ErrCodeCrypto, "encoding AS-REQ", err)
	}

	c.priorReqWire = wire
	c.loopCount++
	return wire, nil
}

// finalize implements spec.md §4.11 step 4.
func (c *Context) finalize(rep *messages.ASRep) error {
	c.reply = rep

	rep.PAData = sortPAData(rep.PAData, c.preferredPreauthTypes())

	if c.salt == "" {
		c.salt = defaultSalt(Principal{Name: rep.CName, Realm: rep.CRealm})
	}

	keyProc := c.caps.KeyProc
	decryptProc := c.caps.DecryptProc
	if decryptProc == nil {
		decryptProc = defaultDecryptProc
	}

	var key *types.EncryptionKey
	if c.asKey.KeyType != 0 {
		key = &c.asKey
	}

	strengthenKey := c.fastStrengthenKey(rep)
	encKey := key
	if encKey != nil {
		combined := c.caps.armor().ReplyKey(strengthenKey, *encKey)
		encKey = &combined
	}

	encPart, err := decryptReply(rep, encKey, c.salt, keyProc, decryptProc)
	if err != nil {
		if c.caps.GAK == nil {
			return err
		}
		newKey, gakErr := c.caps.GAK(c.client, c.salt, c.s2kparams, c.etype)
		if gakErr != nil {
			return newError(ErrCodeCrypto, "get-as-key retry failed", gakErr)
		}
		c.asKey = newKey
		combined := c.caps.armor().ReplyKey(strengthenKey, c.asKey)
		encPart, err = decryptReply(rep, &combined, c.salt, keyProc, decryptProc)
		if err != nil {
			return err
		}
	}
	c.encPart = encPart

	if err := validateReply(&c.request, rep, encPart, c.vopts); err != nil {
		return err
	}

	if err := stashCredentials(&c.creds, rep, encPart, c.caps.Cache); err != nil {
		return err
	}

	c.state = stateComplete
	return nil
}

// fastStrengthenKey runs FAST reply-processing to obtain an optional
// strengthen key (spec.md §4.11 step 4). NullArmor never produces one.
func (c *Context) fastStrengthenKey(*messages.ASRep) *types.EncryptionKey {
	return nil
}

func (c *Context) preferredPreauthTypes() string {
	realm := c.request.Client.Realm
	if v, ok := c.cfg.getString(realm, "preferred_preauth_types"); ok {
		return v
	}
	return defaultPreferredPreauthTypes
}

// Credentials returns the completed credentials record. It is only valid
// after Step has reported FlagComplete.
func (c *Context) Credentials() (Credentials, error) {
	if c.state != stateComplete {
		return Credentials{}, newError(ErrCodeGetInTktLoop, "exchange not yet complete", nil)
	}
	return c.creds, nil
}

// Close tears down the Context (spec.md §3 invariant 5, §5 Cancellation,
// §8 "Teardown hygiene"): it zeroes the long-term as_key this exchange
// derived or was given, whether or not the exchange ran to completion. A
// Context must not be stepped again after Close. Callers that drive Step
// directly, rather than through GetInitialCredentials, must call Close
// themselves once the exchange is finished or abandoned.
func (c *Context) Close() error {
	zeroKey(&c.asKey)
	c.state = stateFailed
	return nil
}

// decodePaDataHints decodes a PREAUTH_REQUIRED error's e-data as a padata
// sequence (spec.md §4.11 step 1).
func decodePaDataHints(eData []byte) (types.PADataSequence, error) {
	if len(eData) == 0 {
		return nil, nil
	}
	var pa types.PADataSequence
	if err := pa.Unmarshal(eData); err != nil {
		return nil, newError(ErrCodePreauthFailed, "decoding PREAUTH_REQUIRED e-data", err)
	}
	return pa, nil
}

// encodeReqBody encodes just the KDC-REQ-BODY portion of req, the bytes
// pre-auth mechanisms checksum/MAC over.
func encodeReqBody(req *Request) ([]byte, error) {
	body := toKDCReqBody(req)
	return body.Marshal()
}

// encodeASReq translates req into a wire messages.ASReq and marshals it.
// The ASN.1 codec itself belongs to gokrb5 (spec.md §1 out of scope); this
// function only owns the field mapping from this package's Request to the
// wire structure.
func encodeASReq(req *Request) ([]byte, error) {
	asReq := messages.ASReq{
		PAData: req.PAData,
		ReqBody: toKDCReqBody(req),
	}
	return asReq.Marshal()
}

func toKDCReqBody(req *Request) messages.KDCReqBody {
	return messages.KDCReqBody{
		CName:     req.Client.Name,
		Realm:     req.Client.Realm,
		SName:     req.Server.Name,
		From:      req.From,
		Till:      req.Till,
		RTime:     req.RTime,
		Nonce:     int(req.Nonce),
		EType:     req.EType,
		Addresses: req.Addresses,
	}
}
