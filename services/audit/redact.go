package audit

import (
	"regexp"
	"sort"
	"strings"
)

// SensitiveKind names a class of data masked before an audit entry is stored.
type SensitiveKind string

const (
	KindEmail      SensitiveKind = "email"
	KindPhone      SensitiveKind = "phone"
	KindSSN        SensitiveKind = "ssn"
	KindCreditCard SensitiveKind = "credit_card"
	KindIPAddress  SensitiveKind = "ip_address"
	KindSecret     SensitiveKind = "secret"
)

type detector struct {
	kind    SensitiveKind
	pattern *regexp.Regexp
	accept  func(match string) bool
}

// Order matters only for the label when two spans overlap: earlier wins.
var detectors = []detector{
	{kind: KindSecret, pattern: regexp.MustCompile(`\b(?:sk-(?:ant-)?[A-Za-z0-9_\-]{16,}|AKIA[0-9A-Z]{16}|gh[pousr]_[A-Za-z0-9]{36,}|hf_[A-Za-z0-9]{30,})\b`)},
	{kind: KindSecret, pattern: regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}\.[A-Za-z0-9_\-]{8,}\b`)},
	{kind: KindEmail, pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kind: KindCreditCard, pattern: regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`), accept: luhnValid},
	{kind: KindSSN, pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), accept: plausibleSSN},
	{kind: KindIPAddress, pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{kind: KindPhone, pattern: regexp.MustCompile(`(?:\+?1[ .\-]?)?\(?\b\d{3}\)?[ .\-]\d{3}[ .\-]\d{4}\b`)},
}

// Detection is one sensitive span in a text.
type Detection struct {
	Kind  SensitiveKind
	Start int
	End   int
}

// Detect returns the non-overlapping sensitive spans of text, in order.
func Detect(text string) []Detection {
	var found []Detection
	for _, d := range detectors {
		for _, m := range d.pattern.FindAllStringIndex(text, -1) {
			if d.accept != nil && !d.accept(text[m[0]:m[1]]) {
				continue
			}
			found = append(found, Detection{Kind: d.kind, Start: m[0], End: m[1]})
		}
	}
	if len(found) == 0 {
		return nil
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	merged := found[:1]
	for _, det := range found[1:] {
		last := &merged[len(merged)-1]
		if det.Start < last.End {
			if det.End > last.End {
				last.End = det.End
			}
			continue
		}
		merged = append(merged, det)
	}
	return merged
}

// Redact masks every sensitive span of text with a [<KIND>_REDACTED] marker.
func Redact(text string) string {
	detections := Detect(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, d := range detections {
		b.WriteString(text[prev:d.Start])
		b.WriteString("[" + strings.ToUpper(string(d.Kind)) + "_REDACTED]")
		prev = d.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

func plausibleSSN(s string) bool {
	digits := strings.ReplaceAll(s, "-", "")
	if digits[:3] == "000" || digits[3:5] == "00" || digits[5:] == "0000" {
		return false
	}
	return !strings.HasPrefix(digits, "666") && !strings.HasPrefix(digits, "9")
}

// luhnValid reports whether the digits of s pass the Luhn checksum.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if (len(digits)-1-i)%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}
