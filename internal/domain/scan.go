package domain

import "encoding/json"

// ScanRow is one symbol's outcome in a multi-symbol scan. A row either
// carries signal fields or an Error, never both.
type ScanRow struct {
	Symbol    string
	Upw       bool
	Dnw       bool
	State     TrendState
	Changed   bool
	Reason    string
	LTState   TrendState
	Readiness float64
	Error     string
}

func (r ScanRow) Failed() bool { return r.Error != "" }

func (r ScanRow) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Symbol string `json:"symbol"`
			Error  string `json:"error"`
		}{r.Symbol, r.Error})
	}
	return json.Marshal(struct {
		Symbol    string     `json:"symbol"`
		Upw       bool       `json:"upw"`
		Dnw       bool       `json:"dnw"`
		State     TrendState `json:"state"`
		Changed   bool       `json:"changed"`
		Reason    string     `json:"reason"`
		LTState   TrendState `json:"lt_state"`
		Readiness float64    `json:"readiness"`
	}{r.Symbol, r.Upw, r.Dnw, r.State, r.Changed, r.Reason, r.LTState, r.Readiness})
}
