package probe

import "sort"

// MicroF1 equals accuracy for single-label multi-class predictions.
func MicroF1(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// MacroF1 averages per-class F1 over every label that appears in either
// yTrue or yPred. Classes with no support and no predictions score 0.
func MacroF1(yTrue, yPred []int) float64 {
	type counts struct{ tp, fp, fn int }
	per := make(map[int]*counts)
	get := func(c int) *counts {
		if per[c] == nil {
			per[c] = &counts{}
		}
		return per[c]
	}
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			get(yTrue[i]).tp++
			continue
		}
		get(yTrue[i]).fn++
		get(yPred[i]).fp++
	}
	if len(per) == 0 {
		return 0
	}

	labels := make([]int, 0, len(per))
	for c := range per {
		labels = append(labels, c)
	}
	sort.Ints(labels)

	var sum float64
	for _, c := range labels {
		k := per[c]
		if denom := 2*k.tp + k.fp + k.fn; denom > 0 {
			sum += 2 * float64(k.tp) / float64(denom)
		}
	}
	return sum / float64(len(labels))
}
