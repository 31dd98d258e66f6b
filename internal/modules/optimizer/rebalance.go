package optimizer

import "math"

// RebalancePlan splits the transition between two recommendations into the
// positions to open, close, and resize.
type RebalancePlan struct {
	Add    []Position `json:"add"`
	Remove []Position `json:"remove"`
	Adjust []Position `json:"adjust"`
}

// DefaultRebalanceThreshold is the relative weight change below which an
// existing position is left untouched.
const DefaultRebalanceThreshold = 0.05

// PlanRebalance diffs the current portfolio against the new target. Positions
// absent from the target are removals, new symbols are additions, and
// surviving symbols whose weight moved by more than the threshold (relative
// to their current weight) are adjustments.
func PlanRebalance(current, target *Recommendation, threshold float64) RebalancePlan {
	if threshold <= 0 {
		threshold = DefaultRebalanceThreshold
	}

	currentBySymbol := make(map[string]Position)
	for _, p := range current.Positions() {
		currentBySymbol[p.Symbol] = p
	}
	targetBySymbol := make(map[string]Position)
	for _, p := range target.Positions() {
		targetBySymbol[p.Symbol] = p
	}

	var plan RebalancePlan
	for _, p := range target.Positions() {
		existing, held := currentBySymbol[p.Symbol]
		if !held {
			plan.Add = append(plan.Add, p)
			continue
		}
		if existing.Weight == 0 {
			plan.Adjust = append(plan.Adjust, p)
			continue
		}
		if math.Abs(p.Weight-existing.Weight)/existing.Weight > threshold {
			plan.Adjust = append(plan.Adjust, p)
		}
	}
	for _, p := range current.Positions() {
		if _, kept := targetBySymbol[p.Symbol]; !kept {
			plan.Remove = append(plan.Remove, p)
		}
	}
	return plan
}
