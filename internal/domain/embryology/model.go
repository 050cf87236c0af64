package embryology

import (
	"time"

	"github.com/google/uuid"
)

// Culture day bounds. Day 0 is the day of retrieval/insemination.
const (
	MinDay = 0
	MaxDay = 6

	MinExpansion = 1
	MaxExpansion = 6

	// NotGraded is the grade label for embryos the rules cannot grade.
	NotGraded = "Not graded"
)

// Status is the lifecycle state of an embryo. It is changed by clinical
// events (freeze, thaw, transfer, biopsy, discard), never by grading.
type Status string

const (
	StatusDeveloping  Status = "developing"
	StatusArrested    Status = "arrested"
	StatusTransferred Status = "transferred"
	StatusFrozen      Status = "frozen"
	StatusThawed      Status = "thawed"
	StatusBiopsied    Status = "biopsied"
	StatusDiscarded   Status = "discarded"
)

// AllStatuses lists every embryo status in display order.
var AllStatuses = []Status{
	StatusDeveloping, StatusArrested, StatusTransferred, StatusFrozen,
	StatusThawed, StatusBiopsied, StatusDiscarded,
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Quality is the discrete tier derived from an embryo's grade.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
)

// AllQualities lists the quality tiers from best to worst.
var AllQualities = []Quality{QualityExcellent, QualityGood, QualityFair, QualityPoor}

func (q Quality) IsValid() bool {
	switch q {
	case QualityExcellent, QualityGood, QualityFair, QualityPoor:
		return true
	}
	return false
}

// Symmetry describes blastomere size evenness at the cleavage stage.
type Symmetry string

const (
	SymmetryEqual   Symmetry = "equal"
	SymmetryUnequal Symmetry = "unequal"
	SymmetrySevere  Symmetry = "severe"
)

func (s Symmetry) IsValid() bool {
	switch s {
	case SymmetryEqual, SymmetryUnequal, SymmetrySevere:
		return true
	}
	return false
}

// GradeLetter is a Gardner ICM or TE grade.
type GradeLetter string

const (
	GradeA GradeLetter = "A"
	GradeB GradeLetter = "B"
	GradeC GradeLetter = "C"
)

func (g GradeLetter) IsValid() bool {
	switch g {
	case GradeA, GradeB, GradeC:
		return true
	}
	return false
}

// PGTResult is the outcome of preimplantation genetic testing.
type PGTResult string

const (
	PGTEuploid   PGTResult = "euploid"
	PGTAneuploid PGTResult = "aneuploid"
	PGTMosaic    PGTResult = "mosaic"
	PGTNoResult  PGTResult = "no_result"
	PGTPending   PGTResult = "pending"
)

func (p PGTResult) IsValid() bool {
	switch p {
	case PGTEuploid, PGTAneuploid, PGTMosaic, PGTNoResult, PGTPending:
		return true
	}
	return false
}

// Disposition records what was ultimately done with an embryo.
type Disposition string

const (
	DispositionFreshTransfer Disposition = "fresh_transfer"
	DispositionFrozen        Disposition = "frozen"
	DispositionDiscarded     Disposition = "discarded"
	DispositionDonated       Disposition = "donated"
	DispositionResearch      Disposition = "research"
)

func (d Disposition) IsValid() bool {
	switch d {
	case DispositionFreshTransfer, DispositionFrozen, DispositionDiscarded,
		DispositionDonated, DispositionResearch:
		return true
	}
	return false
}

// Embryo maps to the embryo table. Grade and Quality are derived from the
// morphology fields by Classify and are overwritten on every save.
type Embryo struct {
	ID           uuid.UUID `db:"id" json:"id"`
	CycleID      uuid.UUID `db:"cycle_id" json:"cycle_id"`
	EmbryoNumber int       `db:"embryo_number" json:"embryo_number"`
	Day          int       `db:"day" json:"day"`

	// Cleavage stage (day <= 3)
	CellCount            *int      `db:"cell_count" json:"cell_count,omitempty"`
	FragmentationPercent *float64  `db:"fragmentation_percent" json:"fragmentation_percent,omitempty"`
	Symmetry             *Symmetry `db:"symmetry" json:"symmetry,omitempty"`

	// Blastocyst stage (day >= 5)
	Expansion *int         `db:"expansion" json:"expansion,omitempty"`
	ICMGrade  *GradeLetter `db:"icm_grade" json:"icm_grade,omitempty"`
	TEGrade   *GradeLetter `db:"te_grade" json:"te_grade,omitempty"`

	Grade       string       `db:"grade" json:"grade"`
	Quality     Quality      `db:"quality" json:"quality"`
	Status      Status       `db:"status" json:"status"`
	Disposition *Disposition `db:"disposition" json:"disposition,omitempty"`

	PGTResult  *PGTResult `db:"pgt_result" json:"pgt_result,omitempty"`
	PGTDetails *string    `db:"pgt_details" json:"pgt_details,omitempty"`

	FertilizationDate *time.Time `db:"fertilization_date" json:"fertilization_date,omitempty"`
	FreezeDate        *time.Time `db:"freeze_date" json:"freeze_date,omitempty"`
	ThawDate          *time.Time `db:"thaw_date" json:"thaw_date,omitempty"`
	TransferDate      *time.Time `db:"transfer_date" json:"transfer_date,omitempty"`
	BiopsyDate        *time.Time `db:"biopsy_date" json:"biopsy_date,omitempty"`

	// Cryostorage location
	StrawNumber *string `db:"straw_number" json:"straw_number,omitempty"`
	Tank        *string `db:"tank" json:"tank,omitempty"`
	Position    *string `db:"position" json:"position,omitempty"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Grading input only, never read back from storage. ManualGrade is the
	// hand-entered morula grade; ManualQuality is the tier used where the
	// rules cannot derive one.
	ManualGrade   string  `db:"-" json:"manual_grade,omitempty"`
	ManualQuality Quality `db:"-" json:"manual_quality,omitempty"`
}

func (e *Embryo) hasCleavageFields() bool {
	return e.CellCount != nil || e.FragmentationPercent != nil || e.Symmetry != nil
}

func (e *Embryo) hasBlastocystFields() bool {
	return e.Expansion != nil || e.ICMGrade != nil || e.TEGrade != nil
}

// Observation converts the stored flat columns into a stage-tagged
// observation. A record carrying both field groups is rejected.
func (e *Embryo) Observation() (Observation, error) {
	day := e.Day
	obs := Observation{Day: &day, Quality: e.ManualQuality}

	cleavage, blastocyst := e.hasCleavageFields(), e.hasBlastocystFields()
	switch {
	case cleavage && blastocyst:
		return Observation{}, invalidData("morphology", "cleavage and blastocyst fields cannot both be set", nil)
	case cleavage:
		obs.Morphology = CleavageMorphology{
			CellCount:            e.CellCount,
			FragmentationPercent: e.FragmentationPercent,
			Symmetry:             e.Symmetry,
		}
	case blastocyst:
		obs.Morphology = BlastocystMorphology{
			Expansion: e.Expansion,
			ICMGrade:  e.ICMGrade,
			TEGrade:   e.TEGrade,
		}
	}

	// Grade and Quality hold the last computed result and are not input.
	if StageForDay(day) == StageMorula {
		obs.ManualGrade = e.ManualGrade
	}
	return obs, nil
}

// ApplyResult writes a classification result back onto the record.
func (e *Embryo) ApplyResult(r Result) {
	e.Grade = r.Grade
	e.Quality = r.Quality
}
