package backend

import "strings"

// AnalysisDirective is the in-band marker a chat reply uses to hand a symbol
// to the analysis engine instead of answering in text.
const AnalysisDirective = "ORMCR_ANALYSIS_REQUESTED:"

// ParseDirective reports whether reply carries the analysis directive and
// returns the trimmed text following it. A found directive may still carry an
// empty symbol.
func ParseDirective(reply string) (symbol string, found bool) {
	idx := strings.Index(reply, AnalysisDirective)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(reply[idx+len(AnalysisDirective):]), true
}
