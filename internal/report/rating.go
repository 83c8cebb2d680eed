package report

// Rating is the qualitative coverage bucket for a pass rate.
type Rating string

const (
	RatingExcellent Rating = "EXCELLENT"
	RatingGood      Rating = "GOOD"
	RatingModerate  Rating = "MODERATE"
	RatingPoor      Rating = "POOR"
	RatingNoData    Rating = "No data"
)

// RatingFor buckets a pass rate given as a percentage.
func RatingFor(rate float64, total int) Rating {
	switch {
	case total == 0:
		return RatingNoData
	case rate >= 80:
		return RatingExcellent
	case rate >= 60:
		return RatingGood
	case rate >= 40:
		return RatingModerate
	default:
		return RatingPoor
	}
}

// Describe returns a one-line description of the rating.
func (r Rating) Describe() string {
	switch r {
	case RatingExcellent:
		return "strong animation coverage"
	case RatingGood:
		return "decent animation coverage"
	case RatingModerate:
		return "limited animation coverage"
	case RatingPoor:
		return "minimal animation coverage"
	default:
		return "no events were checked"
	}
}
