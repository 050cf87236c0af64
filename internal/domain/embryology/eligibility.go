package embryology

import "github.com/google/uuid"

// MaxTransferEmbryos is the clinical cap on embryos per transfer.
const MaxTransferEmbryos = 3

// IsTransferable reports whether an embryo may be selected for transfer.
// Developing embryos are assumed to have reached a suitable day; no minimum
// day is enforced here.
func IsTransferable(e Embryo) bool {
	switch e.Status {
	case StatusDeveloping, StatusFrozen, StatusThawed:
		return true
	}
	return false
}

// IsFreezable reports whether an embryo may be vitrified.
func IsFreezable(e Embryo) bool {
	switch e.Status {
	case StatusDeveloping, StatusBiopsied, StatusThawed:
		return true
	}
	return false
}

// TransferCandidates filters embryos down to those eligible for transfer,
// keeping their order.
func TransferCandidates(embryos []Embryo) []Embryo {
	out := make([]Embryo, 0, len(embryos))
	for _, e := range embryos {
		if IsTransferable(e) {
			out = append(out, e)
		}
	}
	return out
}

// ValidateTransferSelection checks a selection of embryo ids against the
// cycle's embryos and returns the selected embryos in selection order.
func ValidateTransferSelection(pool []Embryo, ids []uuid.UUID) ([]Embryo, error) {
	if len(ids) == 0 {
		return nil, &TransferSelectionError{Reason: "select at least one embryo"}
	}
	if len(ids) > MaxTransferEmbryos {
		return nil, &TransferSelectionError{
			Reason:    "at most 3 embryos may be transferred",
			EmbryoIDs: append([]uuid.UUID(nil), ids...),
		}
	}

	byID := make(map[uuid.UUID]Embryo, len(pool))
	for _, e := range pool {
		byID[e.ID] = e
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	var duplicate, unknown, ineligible []uuid.UUID
	selected := make([]Embryo, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			duplicate = append(duplicate, id)
			continue
		}
		seen[id] = true

		e, ok := byID[id]
		switch {
		case !ok:
			unknown = append(unknown, id)
		case !IsTransferable(e):
			ineligible = append(ineligible, id)
		default:
			selected = append(selected, e)
		}
	}

	switch {
	case len(duplicate) > 0:
		return nil, &TransferSelectionError{Reason: "embryo selected more than once", EmbryoIDs: duplicate}
	case len(unknown) > 0:
		return nil, &TransferSelectionError{Reason: "embryo does not belong to this cycle", EmbryoIDs: unknown}
	case len(ineligible) > 0:
		return nil, &TransferSelectionError{Reason: "embryo is not transferable", EmbryoIDs: ineligible}
	}
	return selected, nil
}
