// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"fmt"

	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/types"
)

// krbtgtComponent is the literal first name component of every TGS
// principal: krbtgt/REALM@REALM.
const krbtgtComponent = "krbtgt"

// Principal is the name-plus-realm pair spec.md §3 defines: gokrb5's own
// wire types (types.PrincipalName) carry only the name components, leaving
// the realm to whichever enclosing message field holds it, so the core
// pairs them explicitly wherever a principal crosses a component boundary.
type Principal struct {
	Name  types.PrincipalName
	Realm string
}

// NewPrincipal builds an ordinary (KRB_NT_PRINCIPAL) principal from a
// realm and one or more name components.
func NewPrincipal(realm string, components ...string) Principal {
	return Principal{
		Name: types.PrincipalName{
			NameType:   nametype.KRB_NT_PRINCIPAL,
			NameString: append([]string(nil), components...),
		},
		Realm: realm,
	}
}

// NewEnterprisePrincipal builds a single-component enterprise principal,
// e.g. "alice@EXAMPLE.COM", whose realm is carried for canonicalization
// purposes (spec.md §4.6 rule 2) but embedded nowhere in the wire name.
func NewEnterprisePrincipal(upn, realm string) Principal {
	return Principal{
		Name: types.PrincipalName{
			NameType:   nametype.KRB_NT_ENTERPRISE,
			NameString: []string{upn},
		},
		Realm: realm,
	}
}

// tgtServerPrincipal returns the default AS-REQ server principal for a TGT
// request: krbtgt/realm@realm.
func tgtServerPrincipal(realm string) Principal {
	return Principal{
		Name: types.PrincipalName{
			NameType:   nametype.KRB_NT_SRV_INST,
			NameString: []string{krbtgtComponent, realm},
		},
		Realm: realm,
	}
}

// isTGSName reports whether n has the two-component krbtgt/REALM shape,
// regardless of which realm it names.
func isTGSName(n types.PrincipalName) bool {
	return len(n.NameString) == 2 && n.NameString[0] == krbtgtComponent
}

// isTGT reports whether p is the TGS principal for its own realm, i.e. a
// TGT server name (krbtgt/realm@realm).
func isTGT(p Principal) bool {
	return isTGSName(p.Name) && p.Name.NameString[1] == p.Realm
}

// isEnterprise reports whether p is an enterprise principal (spec.md §3).
func isEnterprise(p Principal) bool {
	return p.Name.NameType == nametype.KRB_NT_ENTERPRISE
}

// equal is the component-wise, realm-sensitive equality spec.md §3
// requires for reply validation.
func (p Principal) equal(other Principal) bool {
	return p.Realm == other.Realm && p.Name.Equal(other.Name)
}

func (p Principal) String() string {
	if len(p.Name.NameString) == 0 {
		return "@" + p.Realm
	}
	return fmt.Sprintf("%s@%s", joinComponents(p.Name.NameString), p.Realm)
}

func joinComponents(c []string) string {
	out := c[0]
	for _, s := range c[1:] {
		out += "/" + s
	}
	return out
}

// rewriteServerRealm implements C3: it returns a copy of old with its
// realm replaced by newRealm, and — when isTGSReq is true (the request is
// for a TGT) — its second name component replaced by newRealm too, so that
// krbtgt/OLD@OLD becomes krbtgt/NEW@NEW rather than krbtgt/OLD@NEW. old is
// never mutated.
func rewriteServerRealm(old Principal, newRealm string, isTGSReq bool) Principal {
	next := Principal{
		Name: types.PrincipalName{
			NameType:   old.Name.NameType,
			NameString: append([]string(nil), old.Name.NameString...),
		},
		Realm: newRealm,
	}

	if isTGSReq && isTGSName(next.Name) {
		next.Name.NameString[1] = newRealm
	}

	return next
}
