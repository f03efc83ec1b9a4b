package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Product codes referenced by cycle-completion and booster logic.
const (
	// ProductJohnsonAndJohnson is the EU medicinal product code for the
	// single-dose Janssen vaccine.
	ProductJohnsonAndJohnson = "EU/1/20/1525"
)

// Name carries the holder name in both display and ICAO-transliterated form.
// The transliterated fields are the ones used for identity matching; display
// fields are presentation-only.
type Name struct {
	GivenName              string `json:"gn,omitempty"`
	FamilyName             string `json:"fn,omitempty"`
	StandardizedGivenName  string `json:"gnt,omitempty"`
	StandardizedFamilyName string `json:"fnt"`
}

// Vaccination is a single vaccination entry of a DGC.
type Vaccination struct {
	Target       string `json:"tg"`
	Prophylaxis  string `json:"vp"`
	Product      string `json:"mp"`
	Manufacturer string `json:"ma"`
	DoseNumber   int    `json:"dn"`
	SeriesDoses  int    `json:"sd"`
	Date         Date   `json:"dt"`
	Country      string `json:"co"`
	Issuer       string `json:"is"`
	UVCI         string `json:"ci"`
}

// IsComplete reports whether the entry finishes its primary series.
func (v Vaccination) IsComplete() bool {
	return v.DoseNumber >= v.SeriesDoses
}

// Is1of2 reports a first dose of a two-dose regimen.
func (v Vaccination) Is1of2() bool {
	return v.DoseNumber == 1 && v.SeriesDoses == 2
}

// IsJohnsonAndJohnson reports the single-dose Janssen product.
func (v Vaccination) IsJohnsonAndJohnson() bool {
	return v.Product == ProductJohnsonAndJohnson
}

// IsBoosted reports a dose beyond the primary series. A 2/2 Janssen entry
// counts as boosted because its primary series is a single dose.
func (v Vaccination) IsBoosted() bool {
	if v.DoseNumber > v.SeriesDoses {
		return true
	}
	if v.DoseNumber == v.SeriesDoses && v.DoseNumber > 2 {
		return true
	}
	return v.IsJohnsonAndJohnson() && v.DoseNumber >= 2
}

// TestEntry is a single test entry of a DGC.
type TestEntry struct {
	Target           string `json:"tg"`
	TestType         string `json:"tt"`
	TestName         string `json:"nm,omitempty"`
	Manufacturer     string `json:"ma,omitempty"`
	SampleCollection Date   `json:"sc"`
	Result           string `json:"tr"`
	TestCenter       string `json:"tc,omitempty"`
	Country          string `json:"co"`
	Issuer           string `json:"is"`
	UVCI             string `json:"ci"`
}

// Recovery is a single recovery entry of a DGC.
type Recovery struct {
	Target          string `json:"tg"`
	FirstResult     Date   `json:"fr"`
	ValidFrom       Date   `json:"df"`
	ValidUntil      Date   `json:"du"`
	Country         string `json:"co"`
	Issuer          string `json:"is"`
	UVCI            string `json:"ci"`
}

// DGC is the decoded digital green certificate payload. Signature
// verification happens upstream; by the time a DGC reaches this package it is
// a trusted value. A raw DGC may carry several entries of mixed types; the
// engine treats each entry as logically independent.
type DGC struct {
	Name         Name          `json:"nam"`
	BirthDate    Date          `json:"dob"`
	Vaccinations []Vaccination `json:"v,omitempty"`
	Tests        []TestEntry   `json:"t,omitempty"`
	Recoveries   []Recovery    `json:"r,omitempty"`
	Version      string        `json:"ver"`
}

// LatestVaccination returns the chronologically latest vaccination entry,
// breaking date ties by lexicographically greatest UVCI.
func (d DGC) LatestVaccination() (Vaccination, bool) {
	if len(d.Vaccinations) == 0 {
		return Vaccination{}, false
	}
	best := d.Vaccinations[0]
	for _, v := range d.Vaccinations[1:] {
		if laterEntry(v.Date, v.UVCI, best.Date, best.UVCI) {
			best = v
		}
	}
	return best, true
}

// LatestTest returns the test entry with the latest sample collection time.
func (d DGC) LatestTest() (TestEntry, bool) {
	if len(d.Tests) == 0 {
		return TestEntry{}, false
	}
	best := d.Tests[0]
	for _, t := range d.Tests[1:] {
		if laterEntry(t.SampleCollection, t.UVCI, best.SampleCollection, best.UVCI) {
			best = t
		}
	}
	return best, true
}

// LatestRecovery returns the recovery entry with the latest first-positive date.
func (d DGC) LatestRecovery() (Recovery, bool) {
	if len(d.Recoveries) == 0 {
		return Recovery{}, false
	}
	best := d.Recoveries[0]
	for _, r := range d.Recoveries[1:] {
		if laterEntry(r.FirstResult, r.UVCI, best.FirstResult, best.UVCI) {
			best = r
		}
	}
	return best, true
}

// UVCI returns the identifier of the first entry present, preferring
// vaccination over test over recovery.
func (d DGC) UVCI() string {
	if len(d.Vaccinations) > 0 {
		return d.Vaccinations[0].UVCI
	}
	if len(d.Tests) > 0 {
		return d.Tests[0].UVCI
	}
	if len(d.Recoveries) > 0 {
		return d.Recoveries[0].UVCI
	}
	return ""
}

// CountryCode returns the issuing country of the first entry present.
func (d DGC) CountryCode() string {
	if len(d.Vaccinations) > 0 {
		return d.Vaccinations[0].Country
	}
	if len(d.Tests) > 0 {
		return d.Tests[0].Country
	}
	if len(d.Recoveries) > 0 {
		return d.Recoveries[0].Country
	}
	return ""
}

// laterEntry orders entries by date, then by UVCI so equal dates resolve
// deterministically.
func laterEntry(date Date, uvci string, bestDate Date, bestUVCI string) bool {
	if date.After(bestDate.Time) {
		return true
	}
	if date.Equal(bestDate.Time) {
		return uvci > bestUVCI
	}
	return false
}

// SameHolder reports whether two DGCs belong to the same person. The match
// uses the transliterated name with hyphen/space/filler normalization plus an
// equal date of birth, so certificates issued with slightly different
// spellings of one family name still group together.
func (d DGC) SameHolder(other DGC) bool {
	if !d.BirthDate.Equal(other.BirthDate.Time) {
		return false
	}
	return normalizeName(d.Name.StandardizedFamilyName) == normalizeName(other.Name.StandardizedFamilyName) &&
		normalizeName(d.Name.StandardizedGivenName) == normalizeName(other.Name.StandardizedGivenName)
}

// HolderKey returns a stable pseudonymous identifier for the holder, derived
// from the normalized transliterated name and date of birth. Two DGCs agree
// on HolderKey exactly when SameHolder reports true.
func (d DGC) HolderKey() string {
	h := sha256.New()
	h.Write([]byte(normalizeName(d.Name.StandardizedFamilyName)))
	h.Write([]byte{'|'})
	h.Write([]byte(normalizeName(d.Name.StandardizedGivenName)))
	h.Write([]byte{'|'})
	h.Write([]byte(d.BirthDate.UTC().Format("2006-01-02")))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeName collapses the separators that differ between issuers: ICAO
// filler '<', hyphens and spaces all become a single '<'.
func normalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	var b strings.Builder
	lastSep := false
	for _, r := range name {
		switch r {
		case '<', '-', ' ':
			if !lastSep {
				b.WriteRune('<')
			}
			lastSep = true
		default:
			b.WriteRune(r)
			lastSep = false
		}
	}
	return strings.Trim(b.String(), "<")
}
