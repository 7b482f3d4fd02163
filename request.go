// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"crypto/rand"
	"math/big"
	"net"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/etypeID"
	"github.com/jcmturner/gokrb5/v8/types"
)

// KDCOptions is the AS-REQ kdc-options bitset (spec.md §3).
type KDCOptions uint32

const (
	OptForwardable KDCOptions = 1 << iota
	OptProxiable
	OptAllowPostdate
	OptPostdated
	OptRenewable
	OptRenewableOK
	OptCanonicalize
)

// Has reports whether all bits of flag are set in o.
func (o KDCOptions) Has(flag KDCOptions) bool { return o&flag == flag }

// Request is the mutable AS-REQ aggregate (spec.md §3). It is rebuilt into
// a wire messages.ASReq by the state machine on each step, rather than
// being mutated in place field by field the way the C implementation does.
type Request struct {
	Client     Principal
	Server     Principal
	KDCOptions KDCOptions
	From       time.Time
	Till       time.Time
	RTime      time.Time
	Nonce      int32
	EType      []int32
	Addresses  []types.HostAddress
	PAData     types.PADataSequence
}

// Credentials is the destination record the stasher (C6) populates.
type Credentials struct {
	Client       Principal
	Server       Principal
	SessionKey   types.EncryptionKey
	IsSKey       bool
	Flags        uint32
	AuthTime     time.Time
	StartTime    time.Time
	EndTime      time.Time
	RenewTill    time.Time
	Addresses    []types.HostAddress
	Ticket       []byte
	SecondTicket []byte
}

// defaultEnctypes is the library-supported enctype list, strongest first,
// used as the fallback when the caller does not supply one and as the
// filter against which a caller-supplied list is validated (spec.md §4.8).
var defaultEnctypes = []int32{
	etypeID.AES256_CTS_HMAC_SHA1_96,
	etypeID.AES128_CTS_HMAC_SHA1_96,
	etypeID.AES256_CTS_HMAC_SHA384_192,
	etypeID.AES128_CTS_HMAC_SHA256_128,
	etypeID.DES3_CBC_SHA1_KD,
	etypeID.RC4_HMAC,
}

// Options carries the per-request tunables a caller may set explicitly,
// each of which takes precedence over configuration and the hard-coded
// fallback (spec.md §4.8 Options precedence). A nil pointer/zero value
// means "caller did not set this".
type Options struct {
	Forwardable    *bool
	Proxiable      *bool
	Canonicalize   *bool
	RenewableOK    *bool
	TicketLifetime time.Duration
	RenewLifetime  time.Duration
	NoAddresses    *bool
	Addresses      []types.HostAddress
	EType          []int32
	StartTime      time.Time
	Salt           string
	S2KParams      []byte
	PAData         types.PADataSequence
}

// buildRequest implements C7: it constructs an AS-REQ skeleton from caller
// options, config defaults and hard-coded fallbacks. client and server are
// assumed already resolved (server defaults to the TGT principal for
// client's realm when the caller wants a TGT, which NewContext handles).
func buildRequest(client, server Principal, opts Options, cfg *ConfigSource, requestTime time.Time, nonce int32) Request {
	realm := client.Realm

	forwardable := resolveBool(opts.Forwardable, cfg, realm, "forwardable", false)
	proxiable := resolveBool(opts.Proxiable, cfg, realm, "proxiable", false)
	canonicalize := resolveBool(opts.Canonicalize, cfg, realm, "canonicalize", false)
	renewableOK := resolveBool(opts.RenewableOK, cfg, realm, "renewable_ok", false)
	noAddresses := resolveBool(opts.NoAddresses, cfg, realm, "noaddresses", true)

	ticketLifetime := opts.TicketLifetime
	if ticketLifetime == 0 {
		ticketLifetime = 24 * time.Hour
		if v, ok := cfg.getString(realm, "ticket_lifetime"); ok {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				ticketLifetime = d
			}
		}
	}
	renewLifetime := opts.RenewLifetime
	if renewLifetime == 0 {
		if v, ok := cfg.getString(realm, "renew_lifetime"); ok {
			if d, err := time.ParseDuration(v); err == nil {
				renewLifetime = d
			}
		}
	}

	var kdcOpts KDCOptions
	if forwardable {
		kdcOpts |= OptForwardable
	}
	if proxiable {
		kdcOpts |= OptProxiable
	}
	if canonicalize {
		kdcOpts |= OptCanonicalize
	}
	if renewLifetime > 0 {
		kdcOpts |= OptRenewable
	}
	if renewableOK {
		kdcOpts |= OptRenewableOK
	}

	var from time.Time
	if !opts.StartTime.IsZero() {
		kdcOpts |= OptPostdated | OptAllowPostdate
		from = time.Unix(int64(addInt32(int32(requestTime.Unix()), int32(opts.StartTime.Unix()-requestTime.Unix()))), 0)
	}

	till := requestTime.Add(ticketLifetime)

	var rtime time.Time
	if renewLifetime > 0 {
		base := from
		if base.IsZero() {
			base = requestTime
		}
		rtime = base.Add(renewLifetime)
		if rtime.Before(till) {
			rtime = till
		}
	}

	addrs := opts.Addresses
	if addrs == nil && !noAddresses {
		addrs = localHostAddresses()
	}

	return Request{
		Client:     client,
		Server:     server,
		KDCOptions: kdcOpts,
		From:       from,
		Till:       till,
		RTime:      rtime,
		Nonce:      nonce,
		EType:      resolveEnctypes(opts.EType),
		Addresses:  addrs,
		PAData:     opts.PAData,
	}
}

func resolveBool(explicit *bool, cfg *ConfigSource, realm, key string, fallback bool) bool {
	if explicit != nil {
		return *explicit
	}
	if cfg != nil {
		if _, ok := cfg.getString(realm, key); ok {
			return cfg.getBoolean(realm, key)
		}
	}
	return fallback
}

// resolveEnctypes filters/reorders a caller-preferred list against the
// library default list: only library-supported enctypes survive, in the
// caller's order, with any default type the caller did not mention
// appended afterwards in the library's own preference order (spec.md §4.8).
func resolveEnctypes(preferred []int32) []int32 {
	if len(preferred) == 0 {
		return append([]int32(nil), defaultEnctypes...)
	}

	supported := make(map[int32]bool, len(defaultEnctypes))
	for _, e := range defaultEnctypes {
		supported[e] = true
	}

	out := make([]int32, 0, len(defaultEnctypes))
	seen := make(map[int32]bool, len(defaultEnctypes))
	for _, e := range preferred {
		if supported[e] && !seen[e] {
			out = append(out, e)
			seen[e] = true
		}
	}
	for _, e := range defaultEnctypes {
		if !seen[e] {
			out = append(out, e)
			seen[e] = true
		}
	}
	return out
}

// freshNonce draws a 31-bit non-negative nonce from a cryptographic
// source, falling back to the masked wall clock if that source fails
// (spec.md §4.8, and Open Question 1: the CSPRNG path is required, not the
// legacy time-only behaviour).
func freshNonce() int32 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		return int32(time.Now().Unix() & 0x7fffffff)
	}
	return int32(n.Int64())
}

// localHostAddresses populates the AS-REQ addresses field from the host's
// network interfaces when the caller asked for addresses but did not
// supply an explicit list.
func localHostAddresses() []types.HostAddress {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	out := make([]types.HostAddress, 0, len(addrs))
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		out = append(out, types.HostAddress{
			AddrType: 2, // AF-INET, per RFC 4120 §7.5.3
			Address:  []byte(ip4),
		})
	}
	return out
}
