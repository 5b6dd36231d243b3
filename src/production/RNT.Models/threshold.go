package rntmodels

// Severity is a risk tier for a sensor reading.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityCaution  Severity = "caution"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities by increasing risk. Unknown severities rank
// below normal.
func (s Severity) Rank() int {
	switch s {
	case SeverityNormal:
		return 1
	case SeverityCaution:
		return 2
	case SeverityWarning:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ThresholdBasis names how a profile was derived.
const (
	BasisIndustrial = "industrial"
	BasisHybrid     = "hybrid"
)

// ThresholdProfile holds the severity boundaries for one
// (machine type, sensor type) pair. Boundaries are floors: a value at or
// above a boundary belongs to that tier or a higher one.
type ThresholdProfile struct {
	MachineType string  `json:"machine_type"`
	SensorType  string  `json:"sensor_type"`
	Normal      float64 `json:"normal"`
	Caution     float64 `json:"caution"`
	Warning     float64 `json:"warning"`
	Critical    float64 `json:"critical"`
	Basis       string  `json:"basis"`
	Confidence  float64 `json:"confidence"`
	SampleCount int     `json:"sample_count"`
	Unit        string  `json:"unit,omitempty"`
}

// Classify returns the highest tier whose floor the value meets or
// exceeds. Ties resolve to the higher (more severe) tier.
func (p ThresholdProfile) Classify(value float64) Severity {
	switch {
	case value >= p.Critical:
		return SeverityCritical
	case value >= p.Warning:
		return SeverityWarning
	case value >= p.Caution:
		return SeverityCaution
	default:
		return SeverityNormal
	}
}

// Ascending reports whether the boundaries are strictly increasing.
func (p ThresholdProfile) Ascending() bool {
	return p.Normal < p.Caution && p.Caution < p.Warning && p.Warning < p.Critical
}
