package executor

import "solana-launch-sniper/internal/domain"

// venueChains maps the liquidity venue to the ordered method preference.
// A closed table instead of branching: adding a venue means adding a row.
var venueChains = map[domain.Platform][]domain.ExecMethod{
	domain.PlatformBondingCurve: {domain.MethodBondingCurve},
	domain.PlatformLaunchpad:    {domain.MethodJupiter, domain.MethodLaunchpadDirect},
}

// MethodChain returns the ordered execution methods to try for a trade.
// Curve-native tokens execute directly against the curve. Other tokens route
// through the aggregator, fall back to a direct pool instruction, and
// finally to the curve when the token is still curve-eligible. A preferred
// method is moved to the front.
func MethodChain(platform domain.Platform, preferred domain.ExecMethod, curveEligible bool) []domain.ExecMethod {
	base, ok := venueChains[platform]
	if !ok {
		base = venueChains[domain.PlatformLaunchpad]
	}

	chain := make([]domain.ExecMethod, 0, len(base)+1)
	chain = append(chain, base...)

	if platform != domain.PlatformBondingCurve && curveEligible {
		chain = append(chain, domain.MethodBondingCurve)
	}

	if preferred == "" {
		return chain
	}

	out := []domain.ExecMethod{preferred}
	for _, m := range chain {
		if m != preferred {
			out = append(out, m)
		}
	}
	return out
}
