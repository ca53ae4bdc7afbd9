package domain

// Metadata is an unstructured metadata container for domain entities.
type Metadata map[string]any

func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	copy := make(Metadata, len(m))
	for k, v := range m {
		copy[k] = v
	}
	return copy
}

// MetricSet maps metric names to measured values.
type MetricSet map[string]float64

func (m MetricSet) Clone() MetricSet {
	if m == nil {
		return MetricSet{}
	}
	copy := make(MetricSet, len(m))
	for k, v := range m {
		copy[k] = v
	}
	return copy
}
