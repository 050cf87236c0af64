package embryology

import "sort"

// DayBucket holds the embryos observed on one culture day.
type DayBucket struct {
	Day     int      `json:"day"`
	Embryos []Embryo `json:"embryos"`
}

// CycleEmbryoStats is read-only presentation data; recompute it on read.
type CycleEmbryoStats struct {
	Total     int             `json:"total"`
	ByStatus  map[Status]int  `json:"by_status"`
	ByQuality map[Quality]int `json:"by_quality"`
	Euploid   int             `json:"euploid"`
	Days      []DayBucket     `json:"days"`
}

// Summarize aggregates a cycle's embryos. Every known status and quality has
// a key (zero when absent) and all seven day buckets are returned.
func Summarize(embryos []Embryo) CycleEmbryoStats {
	stats := CycleEmbryoStats{
		Total:     len(embryos),
		ByStatus:  make(map[Status]int, len(AllStatuses)),
		ByQuality: make(map[Quality]int, len(AllQualities)),
		Days:      GroupByDay(embryos),
	}
	for _, s := range AllStatuses {
		stats.ByStatus[s] = 0
	}
	for _, q := range AllQualities {
		stats.ByQuality[q] = 0
	}

	for _, e := range embryos {
		// Only known keys are counted; an ungraded legacy row has no quality.
		if e.Status.IsValid() {
			stats.ByStatus[e.Status]++
		}
		if e.Quality.IsValid() {
			stats.ByQuality[e.Quality]++
		}
		if e.PGTResult != nil && *e.PGTResult == PGTEuploid {
			stats.Euploid++
		}
	}
	return stats
}

// GroupByDay partitions embryos into buckets for days 0-6, ordered by embryo
// number within a bucket. Numbering may have gaps after deletions.
func GroupByDay(embryos []Embryo) []DayBucket {
	buckets := make([]DayBucket, MaxDay-MinDay+1)
	for i := range buckets {
		buckets[i] = DayBucket{Day: MinDay + i, Embryos: []Embryo{}}
	}
	for _, e := range embryos {
		if e.Day < MinDay || e.Day > MaxDay {
			continue
		}
		i := e.Day - MinDay
		buckets[i].Embryos = append(buckets[i].Embryos, e)
	}
	for i := range buckets {
		b := buckets[i].Embryos
		sort.SliceStable(b, func(a, c int) bool { return b[a].EmbryoNumber < b[c].EmbryoNumber })
	}
	return buckets
}

// NonEmptyDays drops buckets with no embryos, for display.
func NonEmptyDays(buckets []DayBucket) []DayBucket {
	out := make([]DayBucket, 0, len(buckets))
	for _, b := range buckets {
		if len(b.Embryos) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// CountStatus returns how many embryos are in status s.
func CountStatus(embryos []Embryo, s Status) int {
	n := 0
	for _, e := range embryos {
		if e.Status == s {
			n++
		}
	}
	return n
}
