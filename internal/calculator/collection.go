package calculator

// DueOutcome is the minimal view of a due used for collection statistics.
type DueOutcome struct {
	Paid      bool
	Cancelled bool
}

// CollectionRate returns the percentage (0-100) of non-cancelled dues that
// are fully paid. A period without collectible dues yields 100.
func CollectionRate(dues []DueOutcome) float64 {
	total, paid := 0, 0
	for _, d := range dues {
		if d.Cancelled {
			continue
		}
		total++
		if d.Paid {
			paid++
		}
	}
	if total == 0 {
		return 100
	}
	return float64(paid) * 100 / float64(total)
}
