package signal

import "macmarket/internal/domain"

// FoldStates turns edge triggers into a persistent UP/DOWN state.
// When both triggers fire on one bar the state reverses and the bar is
// reported as an anomaly.
func FoldStates(flags []domain.TriggerFlags, initial domain.TrendState) ([]domain.StatePoint, []domain.Anomaly) {
	if initial == domain.StateUnknown {
		initial = domain.StateUp
	}

	states := make([]domain.StatePoint, len(flags))
	var anomalies []domain.Anomaly
	prev := initial
	for i, f := range flags {
		next := prev
		switch {
		case f.Upw && f.Dnw:
			next = prev.Opposite()
			anomalies = append(anomalies, domain.Anomaly{
				Index:    i,
				Time:     f.Time,
				Kind:     domain.AnomalySimultaneousTrigger,
				Resolved: next,
			})
		case f.Upw:
			next = domain.StateUp
		case f.Dnw:
			next = domain.StateDown
		}
		states[i] = domain.StatePoint{
			Time:    f.Time,
			State:   next,
			Changed: i > 0 && next != states[i-1].State,
		}
		prev = next
	}
	return states, anomalies
}
