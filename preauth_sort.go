// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"strconv"
	"strings"

	"github.com/jcmturner/gokrb5/v8/types"
)

// defaultPreferredPreauthTypes is the library fallback for the
// preferred_preauth_types config key (spec.md §6).
const defaultPreferredPreauthTypes = "17, 16, 15, 14"

// parsePreauthPreference splits a comma/whitespace separated list of
// pre-auth type numbers into an ordered slice, skipping anything that does
// not parse as an integer. It returns nil when no entry parses.
func parsePreauthPreference(pref string) []int32 {
	fields := strings.FieldsFunc(pref, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]int32, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
		if err != nil {
			continue
		}
		out = append(out, int32(n))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// sortPAData moves entries of pd whose PADataType appears in pref to the
// front, in preference order, and leaves the remaining entries in their
// original relative order behind them (spec.md §4.2). A nil or empty pd is
// returned unchanged.
func sortPAData(pd types.PADataSequence, pref string) types.PADataSequence {
	if len(pd) == 0 {
		return pd
	}

	order := parsePreauthPreference(pref)
	if len(order) == 0 {
		return pd
	}

	used := make([]bool, len(pd))
	out := make(types.PADataSequence, 0, len(pd))

	for _, wantType := range order {
		for i, e := range pd {
			if used[i] || e.PADataType != wantType {
				continue
			}
			out = append(out, e)
			used[i] = true
		}
	}
	for i, e := range pd {
		if !used[i] {
			out = append(out, e)
		}
	}
	return out
}
