package embryology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidEmbryoData is matched by every *InvalidEmbryoDataError.
	ErrInvalidEmbryoData = errors.New("invalid embryo data")
	// ErrTransferSelection is matched by every *TransferSelectionError.
	ErrTransferSelection = errors.New("invalid transfer selection")
	// ErrIneligible is returned when a clinical event does not apply to the
	// embryo's current status.
	ErrIneligible = errors.New("embryo not eligible")
)

// InvalidEmbryoDataError reports an out-of-range or inconsistent observation field.
type InvalidEmbryoDataError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *InvalidEmbryoDataError) Error() string {
	return fmt.Sprintf("invalid embryo data: %s: %s", e.Field, e.Message)
}

func (e *InvalidEmbryoDataError) Unwrap() error { return ErrInvalidEmbryoData }

func invalidData(field, message string, value interface{}) *InvalidEmbryoDataError {
	return &InvalidEmbryoDataError{Field: field, Message: message, Value: value}
}

// TransferSelectionError rejects a transfer selection. EmbryoIDs names the
// offending embryos when the problem is with specific ids.
type TransferSelectionError struct {
	Reason    string      `json:"reason"`
	EmbryoIDs []uuid.UUID `json:"embryo_ids,omitempty"`
}

func (e *TransferSelectionError) Error() string {
	if len(e.EmbryoIDs) == 0 {
		return "invalid transfer selection: " + e.Reason
	}
	ids := make([]string, len(e.EmbryoIDs))
	for i, id := range e.EmbryoIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("invalid transfer selection: %s: %s", e.Reason, strings.Join(ids, ", "))
}

func (e *TransferSelectionError) Unwrap() error { return ErrTransferSelection }
