package cycle

import (
	"fmt"
	"math"

	"github.com/ivf/ivf/internal/domain/embryology"
)

// CycleStats is derived on read and never stored. Nil counts mean the value
// was neither recorded nor derivable.
type CycleStats struct {
	OocytesRetrieved   *int `json:"oocytes_retrieved"`
	MatureOocytes      *int `json:"mature_oocytes"`
	Fertilized         *int `json:"fertilized"`
	EmbryosTransferred *int `json:"embryos_transferred"`
	EmbryosFrozen      *int `json:"embryos_frozen"`
	EmbryoRecords      int  `json:"embryo_records"`

	// Percentages, one decimal place.
	MaturityRate      *float64 `json:"maturity_rate"`
	FertilizationRate *float64 `json:"fertilization_rate"`
}

// DeriveStats combines the cycle's manual counts with its embryo records.
// Manual retrieval, maturity and fertilization counts win because they are
// recorded before individual embryos exist. Without them, every embryo
// record stands for one retrieved mature oocyte, so the record count is a
// lower bound for both. Transferred and frozen are counted from embryos
// whenever there are any.
func DeriveStats(c Cycle, embryos []embryology.Embryo) CycleStats {
	stats := CycleStats{
		OocytesRetrieved: copyInt(c.OocytesRetrieved),
		MatureOocytes:    copyInt(c.MatureOocytes),
		Fertilized:       copyInt(c.Fertilized),
		EmbryoRecords:    len(embryos),
	}

	if len(embryos) > 0 {
		if stats.OocytesRetrieved == nil {
			n := len(embryos)
			stats.OocytesRetrieved = &n
		}
		if stats.MatureOocytes == nil {
			n := len(embryos)
			stats.MatureOocytes = &n
		}
	}

	if stats.Fertilized == nil && len(embryos) > 0 {
		n := 0
		for _, e := range embryos {
			if e.Day >= 1 && e.FertilizationDate != nil {
				n++
			}
		}
		stats.Fertilized = &n
	}

	if len(embryos) > 0 {
		transferred := embryology.CountStatus(embryos, embryology.StatusTransferred)
		frozen := embryology.CountStatus(embryos, embryology.StatusFrozen)
		stats.EmbryosTransferred = &transferred
		stats.EmbryosFrozen = &frozen
	} else {
		stats.EmbryosTransferred = copyInt(c.EmbryosTransferred)
		stats.EmbryosFrozen = copyInt(c.EmbryosFrozen)
	}

	stats.MaturityRate = percent(stats.MatureOocytes, stats.OocytesRetrieved)
	stats.FertilizationRate = percent(stats.Fertilized, stats.MatureOocytes)
	return stats
}

// ValidateOocyteCounts checks the manual retrieval breakdown: counts are
// non-negative and the assessed oocytes do not exceed the number retrieved.
func ValidateOocyteCounts(c *Cycle) error {
	fields := []struct {
		name string
		v    *int
	}{
		{"oocytes_retrieved", c.OocytesRetrieved},
		{"mature_oocytes", c.MatureOocytes},
		{"immature_mi", c.ImmatureMI},
		{"immature_gv", c.ImmatureGV},
		{"degenerated", c.Degenerated},
		{"fertilized", c.Fertilized},
		{"embryos_transferred", c.EmbryosTransferred},
		{"embryos_frozen", c.EmbryosFrozen},
	}
	for _, f := range fields {
		if f.v != nil && *f.v < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}

	if c.OocytesRetrieved == nil {
		return nil
	}
	assessed := 0
	for _, v := range []*int{c.MatureOocytes, c.ImmatureMI, c.ImmatureGV, c.Degenerated} {
		if v != nil {
			assessed += *v
		}
	}
	if assessed > *c.OocytesRetrieved {
		return fmt.Errorf("assessed oocytes (%d) exceed oocytes retrieved (%d)", assessed, *c.OocytesRetrieved)
	}
	return nil
}

func percent(num, den *int) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	p := math.Round(float64(*num)/float64(*den)*1000) / 10
	return &p
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
