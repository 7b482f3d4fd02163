// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"strings"

	"github.com/jcmturner/gokrb5/v8/config"
)

// ConfigSource resolves a string or boolean option from krb5.conf's
// [libdefaults], backed by the real krb5.conf parser rather than a
// hand-rolled one (spec.md §4.3). Realm-scoped values are not consulted
// (see getString). A nil *ConfigSource is valid and behaves as if no
// configuration was loaded: every lookup returns "not found".
type ConfigSource struct {
	cfg *config.Config
}

// NewConfigSource wraps a parsed krb5.conf. cfg may be nil.
func NewConfigSource(cfg *config.Config) *ConfigSource {
	return &ConfigSource{cfg: cfg}
}

// getString implements C2's get_string over the library-wide defaults:
// the [libdefaults] value, or "not found" (ok == false). realm does not
// select a per-realm value; it only gates the default_realm lookup below.
func (c *ConfigSource) getString(realm, key string) (value string, ok bool) {
	if c == nil || c.cfg == nil {
		return "", false
	}

	if realm != "" && key == "default_realm" && c.cfg.LibDefaults.DefaultRealm != "" {
		return c.cfg.LibDefaults.DefaultRealm, true
	}
	// gokrb5's config.LibDefaults does not expose a generic
	// realm-scoped key/value map (krb5.conf's [libdefaults] stanza is
	// flat, not per-realm, in the upstream format it parses), so the
	// realm-scoped lookup degrades to the global one.
	return c.libdefault(key)
}

// getBoolean implements C2's get_boolean: a found value is matched
// case-insensitively against the RFC-ish truthy/falsy vocabulary; anything
// else, including "not found", defaults to false.
func (c *ConfigSource) getBoolean(realm, key string) bool {
	v, ok := c.getString(realm, key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "y", "yes", "true", "t", "1", "on":
		return true
	default:
		return false
	}
}

func (c *ConfigSource) libdefault(key string) (string, bool) {
	ld := c.cfg.LibDefaults
	switch key {
	case "forwardable":
		return boolStr(ld.Forwardable), true
	case "proxiable":
		return boolStr(ld.Proxiable), true
	case "canonicalize":
		return boolStr(ld.Canonicalize), true
	case "noaddresses":
		return boolStr(ld.NoAddresses), true
	case "ticket_lifetime":
		return ld.TicketLifetime.String(), true
	case "renew_lifetime":
		return ld.RenewLifetime.String(), true
	case "preferred_preauth_types":
		if len(ld.PreferredPreauthTypes) == 0 {
			return "", false
		}
		return joinInts(ld.PreferredPreauthTypes), true
	default:
		return "", false
	}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func joinInts(ints []int) string {
	var sb strings.Builder
	for i, n := range ints {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(itoa(n))
	}
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
