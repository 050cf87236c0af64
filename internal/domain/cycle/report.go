package cycle

import "math"

// Report is the clinic-wide cycle summary.
type Report struct {
	Total       int               `json:"total"`
	Active      int               `json:"active"`
	Completed   int               `json:"completed"`
	Cancelled   int               `json:"cancelled"`
	Successful  int               `json:"successful"`
	SuccessRate int               `json:"success_rate"`
	ByType      map[CycleType]int `json:"by_type"`
	ByStatus    map[Status]int    `json:"by_status"`
}

// BuildReport summarizes cycles. Success rate is the share of completed
// cycles with a positive, clinical or delivered outcome (or marked
// pregnant), as a whole percentage.
func BuildReport(cycles []Cycle) Report {
	r := Report{
		Total:    len(cycles),
		ByType:   make(map[CycleType]int, len(AllTypes)),
		ByStatus: make(map[Status]int, len(Statuses)+1),
	}
	for _, t := range AllTypes {
		r.ByType[t] = 0
	}
	for _, s := range Statuses {
		r.ByStatus[s] = 0
	}
	r.ByStatus[StatusCancelled] = 0

	for _, c := range cycles {
		status, _ := ParseStatus(string(c.Status))
		r.ByStatus[status]++
		r.ByType[c.CycleType]++

		switch status {
		case StatusCompleted:
			r.Completed++
			if successful(c) {
				r.Successful++
			}
		case StatusCancelled:
			r.Cancelled++
		default:
			r.Active++
		}
	}

	if r.Completed > 0 {
		r.SuccessRate = int(math.Round(float64(r.Successful) / float64(r.Completed) * 100))
	}
	return r
}

func successful(c Cycle) bool {
	if c.Outcome != nil && c.Outcome.Successful() {
		return true
	}
	return c.Pregnant != nil && *c.Pregnant
}
