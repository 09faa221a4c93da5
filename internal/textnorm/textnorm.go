// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package textnorm normalizes addresses and county names so carrier-vacancy
// responses and county keys compare equal regardless of diacritics,
// casing, or punctuation differences across upstream sources.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnumSpace = regexp.MustCompile(`[^\p{L}\p{N} ]`)

var foldTransform = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldASCII removes diacritics and lowercases s, leaving letters, digits and
// spaces only. Used to compare county names and carrier-returned city names
// across sources that disagree on accent usage.
func FoldASCII(s string) string {
	s, _, _ = transform.String(foldTransform, s)
	// Punctuation becomes a word break, not a deletion: "SAN-JOSE" must
	// compare equal to "San José".
	s = nonAlnumSpace.ReplaceAllString(s, " ")

	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeAddress uppercases and collapses whitespace in a street address,
// the form carrier-vacancy DPV matching expects.
func NormalizeAddress(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeZIP keeps the leading run of digits, stopping at the first
// non-digit, and truncates it to 5 characters; shorter input is not padded.
// ZIP+4 input (`27529-1234`) yields the base ZIP.
func NormalizeZIP(s string) string {
	var b strings.Builder

	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			break
		}
	}

	zip := b.String()
	if len(zip) > 5 {
		zip = zip[:5]
	}

	return zip
}

// CountyKey builds the county-scoped key behind model.Identity.Key: county
// name folded plus the two-letter state code. It does not include
// parcel_id; the vacancy audit row joins the two itself. Motivation-signal
// reads match the raw (parcel_id, county, state_code) columns instead.
func CountyKey(county, stateCode string) string {
	return FoldASCII(county) + "|" + strings.ToUpper(strings.TrimSpace(stateCode))
}
