package quote

import "strings"

// NormalizeEmail reduces an address to its bare lower-cased form, unwrapping
// the "Name <addr>" shape reply headers usually carry.
func NormalizeEmail(input string) string {
	s := strings.TrimSpace(input)
	if open := strings.LastIndex(s, "<"); open >= 0 {
		if close := strings.Index(s[open:], ">"); close > 0 {
			s = s[open+1 : open+close]
		}
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func emailDomain(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return ""
}

// EmailsRelated is the three-tier fuzzy address comparison: exact, same domain,
// substring either way. Supplier replies routinely come from a mailbox that is
// only cosmetically related to the one the quotation was sent to (shared company
// domain, personal vs. generic inbox), so all three tiers are load-bearing.
func EmailsRelated(a, b string) bool {
	na := NormalizeEmail(a)
	nb := NormalizeEmail(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if da, db := emailDomain(na), emailDomain(nb); da != "" && da == db {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}
