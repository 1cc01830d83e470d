package domain

// SortPreferredFirst stably reorders legs so that a leg targeting the
// preferred venue, if any, executes first. When more than one leg matches the
// preferred venue the one with the lowest original order wins; the relative
// order of all other legs is preserved. Orders are renumbered 1..N. The
// function is idempotent and returns a new slice.
func SortPreferredFirst(legs []ArbitrageLeg, preferredVenue string) []ArbitrageLeg {
	out := make([]ArbitrageLeg, 0, len(legs))

	first := -1
	for i, leg := range legs {
		if leg.Exchange == preferredVenue {
			first = i
			break
		}
	}
	if first >= 0 {
		out = append(out, legs[first])
	}
	for i, leg := range legs {
		if i == first {
			continue
		}
		out = append(out, leg)
	}
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// ValidatePreferredFirst reports whether the opportunity honours the
// preferred-venue ordering rule: either no leg targets the preferred venue, or
// the first leg does. Violations are rejected by the executor, never silently
// corrected; producers fix ordering via SortPreferredFirst before submission.
func ValidatePreferredFirst(opp ArbitrageOpportunity, preferredVenue string) bool {
	if preferredVenue == "" {
		return true
	}
	targets := false
	for _, leg := range opp.Legs {
		if leg.Exchange == preferredVenue {
			targets = true
			break
		}
	}
	if !targets {
		return true
	}
	return len(opp.Legs) > 0 && opp.Legs[0].Exchange == preferredVenue
}
