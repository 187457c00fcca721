package metrics

// Policy selects how Record aggregates a value.
type Policy int

const (
	PolicyNone      Policy = iota // No specific policy specified
	PolicySet                     // Instantaneous value - last value wins
	PolicySum                     // Sum of all values
	PolicyAvg                     // Average of all values
	PolicyMax                     // Maximum value
	PolicyMin                     // Minimum value
	PolicyMid                     // Median value
	PolicyStopwatch               // Timer - measures duration
	PolicyHistogram               // Histogram statistics
)

func (p Policy) String() string {
	switch p {
	case PolicySet:
		return "set"
	case PolicySum:
		return "sum"
	case PolicyAvg:
		return "avg"
	case PolicyMax:
		return "max"
	case PolicyMin:
		return "min"
	case PolicyMid:
		return "mid"
	case PolicyStopwatch:
		return "stopwatch"
	case PolicyHistogram:
		return "histogram"
	default:
		return "none"
	}
}

// Value represents a metric value as a float64.
type Value float64

// Dimension is the label set of one sample, e.g. {"reason": "queue_full"}.
type Dimension map[string]string
