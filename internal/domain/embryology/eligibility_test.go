package embryology

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embryoWith(number int, status Status) Embryo {
	return Embryo{ID: uuid.New(), EmbryoNumber: number, Day: 5, Status: status}
}

func ids(embryos ...Embryo) []uuid.UUID {
	out := make([]uuid.UUID, len(embryos))
	for i, e := range embryos {
		out[i] = e.ID
	}
	return out
}

func TestIsTransferable(t *testing.T) {
	want := map[Status]bool{
		StatusDeveloping:  true,
		StatusFrozen:      true,
		StatusThawed:      true,
		StatusArrested:    false,
		StatusTransferred: false,
		StatusBiopsied:    false,
		StatusDiscarded:   false,
	}
	for status, ok := range want {
		assert.Equal(t, ok, IsTransferable(Embryo{Status: status}), "status %s", status)
	}
}

func TestIsFreezable(t *testing.T) {
	assert.True(t, IsFreezable(Embryo{Status: StatusDeveloping}))
	assert.True(t, IsFreezable(Embryo{Status: StatusBiopsied}))
	assert.False(t, IsFreezable(Embryo{Status: StatusFrozen}))
	assert.False(t, IsFreezable(Embryo{Status: StatusArrested}))
}

func TestValidateTransferSelection(t *testing.T) {
	a := embryoWith(1, StatusDeveloping)
	b := embryoWith(2, StatusFrozen)
	c := embryoWith(3, StatusThawed)
	d := embryoWith(4, StatusDeveloping)
	discarded := embryoWith(5, StatusDiscarded)
	pool := []Embryo{a, b, c, d, discarded}

	t.Run("accepts one to three eligible embryos", func(t *testing.T) {
		for _, sel := range [][]Embryo{{a}, {a, b}, {c, b, a}} {
			got, err := ValidateTransferSelection(pool, ids(sel...))
			require.NoError(t, err)
			assert.Equal(t, ids(sel...), ids(got...))
		}
	})

	t.Run("rejects four", func(t *testing.T) {
		_, err := ValidateTransferSelection(pool, ids(a, b, c, d))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTransferSelection))

		var sel *TransferSelectionError
		require.True(t, errors.As(err, &sel))
		assert.Len(t, sel.EmbryoIDs, 4)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ValidateTransferSelection(pool, nil)
		assert.ErrorIs(t, err, ErrTransferSelection)
	})

	t.Run("rejects discarded and names it", func(t *testing.T) {
		_, err := ValidateTransferSelection(pool, ids(a, discarded))
		var sel *TransferSelectionError
		require.True(t, errors.As(err, &sel))
		assert.Equal(t, []uuid.UUID{discarded.ID}, sel.EmbryoIDs)
		assert.Contains(t, err.Error(), discarded.ID.String())
	})

	t.Run("rejects embryo from another cycle", func(t *testing.T) {
		stranger := uuid.New()
		_, err := ValidateTransferSelection(pool, []uuid.UUID{a.ID, stranger})
		var sel *TransferSelectionError
		require.True(t, errors.As(err, &sel))
		assert.Equal(t, []uuid.UUID{stranger}, sel.EmbryoIDs)
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := ValidateTransferSelection(pool, []uuid.UUID{a.ID, a.ID})
		var sel *TransferSelectionError
		require.True(t, errors.As(err, &sel))
		assert.Equal(t, []uuid.UUID{a.ID}, sel.EmbryoIDs)
	})
}

func TestApplyEvent(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	tank := "T2"

	t.Run("freeze stamps date and storage", func(t *testing.T) {
		e, err := ApplyEvent(embryoWith(1, StatusDeveloping), Event{Type: EventFreeze, At: at, Tank: &tank})
		require.NoError(t, err)
		assert.Equal(t, StatusFrozen, e.Status)
		require.NotNil(t, e.FreezeDate)
		assert.Equal(t, at, *e.FreezeDate)
		assert.Equal(t, "T2", *e.Tank)
		assert.Equal(t, DispositionFrozen, *e.Disposition)
	})

	t.Run("thaw requires frozen", func(t *testing.T) {
		_, err := ApplyEvent(embryoWith(1, StatusDeveloping), Event{Type: EventThaw, At: at})
		assert.ErrorIs(t, err, ErrIneligible)

		e, err := ApplyEvent(embryoWith(1, StatusFrozen), Event{Type: EventThaw, At: at})
		require.NoError(t, err)
		assert.Equal(t, StatusThawed, e.Status)
	})

	t.Run("fresh transfer sets disposition", func(t *testing.T) {
		e, err := ApplyEvent(embryoWith(1, StatusDeveloping), Event{Type: EventTransfer, At: at})
		require.NoError(t, err)
		assert.Equal(t, StatusTransferred, e.Status)
		assert.Equal(t, DispositionFreshTransfer, *e.Disposition)
	})

	t.Run("transfer of arrested embryo is rejected", func(t *testing.T) {
		_, err := ApplyEvent(embryoWith(1, StatusArrested), Event{Type: EventTransfer, At: at})
		assert.ErrorIs(t, err, ErrIneligible)
	})

	t.Run("freeze of transferred embryo is rejected", func(t *testing.T) {
		_, err := ApplyEvent(embryoWith(1, StatusTransferred), Event{Type: EventFreeze, At: at})
		assert.ErrorIs(t, err, ErrIneligible)
	})

	t.Run("biopsy marks pgt pending", func(t *testing.T) {
		e, err := ApplyEvent(embryoWith(1, StatusDeveloping), Event{Type: EventBiopsy, At: at})
		require.NoError(t, err)
		assert.Equal(t, StatusBiopsied, e.Status)
		assert.Equal(t, PGTPending, *e.PGTResult)
	})

	t.Run("discard to research", func(t *testing.T) {
		d := DispositionResearch
		e, err := ApplyEvent(embryoWith(1, StatusFrozen), Event{Type: EventDiscard, At: at, Disposition: &d})
		require.NoError(t, err)
		assert.Equal(t, StatusDiscarded, e.Status)
		assert.Equal(t, DispositionResearch, *e.Disposition)
	})

	t.Run("grade is untouched", func(t *testing.T) {
		in := embryoWith(1, StatusDeveloping)
		in.Grade, in.Quality = "4AA", QualityExcellent
		e, err := ApplyEvent(in, Event{Type: EventArrest, At: at})
		require.NoError(t, err)
		assert.Equal(t, "4AA", e.Grade)
		assert.Equal(t, QualityExcellent, e.Quality)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, err := ApplyEvent(embryoWith(1, StatusDeveloping), Event{Type: "implode"})
		assert.Error(t, err)
	})
}
