package cycle

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CycleType classifies a treatment cycle. It does not change the status
// sequence.
type CycleType string

const (
	TypeIVF         CycleType = "ivf"
	TypeICSI        CycleType = "icsi"
	TypeIUI         CycleType = "iui"
	TypeFET         CycleType = "fet"
	TypeEggFreezing CycleType = "egg_freezing"
	TypeNatural     CycleType = "natural"
	TypeDonorOocyte CycleType = "donor_oocyte"
)

var AllTypes = []CycleType{TypeIVF, TypeICSI, TypeIUI, TypeFET, TypeEggFreezing, TypeNatural, TypeDonorOocyte}

var legacyTypes = map[string]CycleType{
	"ivf_icsi":         TypeICSI,
	"ivf_conventional": TypeIVF,
	"fret":             TypeFET,
	"oocyte_freezing":  TypeEggFreezing,
	"natural_cycle":    TypeNatural,
}

func (t CycleType) IsValid() bool {
	for _, v := range AllTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseType normalizes a cycle type, accepting older spellings.
func ParseType(s string) (CycleType, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if t, ok := legacyTypes[v]; ok {
		return t, true
	}
	t := CycleType(v)
	return t, t.IsValid()
}

// Outcome is the clinical result of a cycle.
type Outcome string

const (
	OutcomeOngoing     Outcome = "ongoing"
	OutcomePositive    Outcome = "positive"
	OutcomeNegative    Outcome = "negative"
	OutcomeBiochemical Outcome = "biochemical"
	OutcomeClinical    Outcome = "clinical"
	OutcomeEctopic     Outcome = "ectopic"
	OutcomeMiscarriage Outcome = "miscarriage"
	OutcomeDelivery    Outcome = "delivery"
)

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeOngoing, OutcomePositive, OutcomeNegative, OutcomeBiochemical,
		OutcomeClinical, OutcomeEctopic, OutcomeMiscarriage, OutcomeDelivery:
		return true
	}
	return false
}

// Successful reports whether the outcome counts as a pregnancy for reporting.
func (o Outcome) Successful() bool {
	return o == OutcomePositive || o == OutcomeClinical || o == OutcomeDelivery
}

// Cycle maps to the cycles table.
type Cycle struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	CycleNumber *int      `db:"cycle_number" json:"cycle_number,omitempty"`
	CycleType   CycleType `db:"cycle_type" json:"cycle_type"`
	Status      Status    `db:"status" json:"status"`
	Protocol    *string   `db:"protocol" json:"protocol,omitempty"`

	StartDate            *time.Time `db:"start_date" json:"start_date,omitempty"`
	StimulationStartDate *time.Time `db:"stimulation_start_date" json:"stimulation_start_date,omitempty"`
	TriggerDate          *time.Time `db:"trigger_date" json:"trigger_date,omitempty"`
	RetrievalDate        *time.Time `db:"retrieval_date" json:"retrieval_date,omitempty"`
	TransferDate         *time.Time `db:"transfer_date" json:"transfer_date,omitempty"`
	PregnancyTestDate    *time.Time `db:"pregnancy_test_date" json:"pregnancy_test_date,omitempty"`

	// Manually entered counts. nil means not recorded.
	OocytesRetrieved   *int `db:"oocytes_retrieved" json:"oocytes_retrieved,omitempty"`
	MatureOocytes      *int `db:"mature_oocytes" json:"mature_oocytes,omitempty"`
	ImmatureMI         *int `db:"immature_mi" json:"immature_mi,omitempty"`
	ImmatureGV         *int `db:"immature_gv" json:"immature_gv,omitempty"`
	Degenerated        *int `db:"degenerated" json:"degenerated,omitempty"`
	Fertilized         *int `db:"fertilized" json:"fertilized,omitempty"`
	EmbryosTransferred *int `db:"embryos_transferred" json:"embryos_transferred,omitempty"`
	EmbryosFrozen      *int `db:"embryos_frozen" json:"embryos_frozen,omitempty"`

	Outcome   *Outcome `db:"outcome" json:"outcome,omitempty"`
	Pregnant  *bool    `db:"pregnant" json:"pregnant,omitempty"`
	BHCGValue *float64 `db:"bhcg_value" json:"bhcg_value,omitempty"`

	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StatusHistory is one accepted status change.
type StatusHistory struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CycleID    uuid.UUID `db:"cycle_id" json:"cycle_id"`
	FromStatus Status    `db:"from_status" json:"from_status"`
	ToStatus   Status    `db:"to_status" json:"to_status"`
	Reopened   bool      `db:"reopened" json:"reopened"`
	ChangedBy  *string   `db:"changed_by" json:"changed_by,omitempty"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
}
