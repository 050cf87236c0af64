package embryology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradedEmbryo grades obs the way the service does before storing it.
func gradedEmbryo(t *testing.T, number int, obs Observation, status Status) Embryo {
	t.Helper()
	r, err := Classify(obs)
	require.NoError(t, err)
	return Embryo{EmbryoNumber: number, Day: *obs.Day, Grade: r.Grade, Quality: r.Quality, Status: status}
}

func fiveEmbryoCycle(t *testing.T) []Embryo {
	return []Embryo{
		gradedEmbryo(t, 1, blastocyst(5, 4, GradeA, GradeA), StatusFrozen),
		gradedEmbryo(t, 2, blastocyst(5, 4, GradeA, GradeA), StatusFrozen),
		gradedEmbryo(t, 3, blastocyst(5, 4, GradeA, GradeB), StatusTransferred),
		gradedEmbryo(t, 4, cleavage(3, 8, 5, SymmetryEqual), StatusArrested),
		gradedEmbryo(t, 5, cleavage(3, 6, 15, SymmetryEqual), StatusArrested),
	}
}

func TestSummarize_FiveEmbryoCycle(t *testing.T) {
	embryos := fiveEmbryoCycle(t)
	require.Equal(t, "8-cell Grade 1", embryos[3].Grade)
	require.Equal(t, "6-cell Grade 2", embryos[4].Grade)

	s := Summarize(embryos)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, map[Quality]int{
		QualityExcellent: 3,
		QualityGood:      2,
		QualityFair:      0,
		QualityPoor:      0,
	}, s.ByQuality)
	assert.Equal(t, 2, s.ByStatus[StatusFrozen])
	assert.Equal(t, 1, s.ByStatus[StatusTransferred])
	assert.Equal(t, 2, s.ByStatus[StatusArrested])
	assert.Equal(t, 0, s.ByStatus[StatusThawed])
}

func TestSummarize_AllKeysPresent(t *testing.T) {
	s := Summarize(nil)

	assert.Equal(t, 0, s.Total)
	assert.Len(t, s.ByStatus, len(AllStatuses))
	assert.Len(t, s.ByQuality, len(AllQualities))
	require.Len(t, s.Days, 7)
	for i, b := range s.Days {
		assert.Equal(t, i, b.Day)
		assert.NotNil(t, b.Embryos)
		assert.Empty(t, b.Embryos)
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	embryos := fiveEmbryoCycle(t)
	first := Summarize(embryos)
	second := Summarize(embryos)
	assert.Equal(t, first, second)
}

func TestSummarize_Euploid(t *testing.T) {
	euploid, mosaic := PGTEuploid, PGTMosaic
	embryos := []Embryo{
		{EmbryoNumber: 1, Day: 5, Status: StatusFrozen, Quality: QualityGood, PGTResult: &euploid},
		{EmbryoNumber: 2, Day: 5, Status: StatusFrozen, Quality: QualityGood, PGTResult: &mosaic},
		{EmbryoNumber: 3, Day: 5, Status: StatusFrozen, Quality: QualityGood},
	}
	assert.Equal(t, 1, Summarize(embryos).Euploid)
}

func TestSummarize_SkipsUnknownQuality(t *testing.T) {
	embryos := []Embryo{
		{EmbryoNumber: 1, Day: 3, Status: StatusDeveloping, Quality: QualityGood},
		{EmbryoNumber: 2, Day: 3, Status: StatusDeveloping},
	}
	s := Summarize(embryos)

	assert.Equal(t, 2, s.Total)
	assert.Len(t, s.ByQuality, len(AllQualities))
	assert.NotContains(t, s.ByQuality, Quality(""))
	assert.Equal(t, 1, s.ByQuality[QualityGood])
	assert.Equal(t, 2, s.ByStatus[StatusDeveloping])
}

func TestGroupByDay_OrdersByNumber(t *testing.T) {
	embryos := []Embryo{
		{EmbryoNumber: 7, Day: 5},
		{EmbryoNumber: 2, Day: 5},
		{EmbryoNumber: 4, Day: 3},
		{EmbryoNumber: 5, Day: 5},
	}
	days := GroupByDay(embryos)

	day5 := days[5].Embryos
	require.Len(t, day5, 3)
	assert.Equal(t, []int{2, 5, 7}, []int{day5[0].EmbryoNumber, day5[1].EmbryoNumber, day5[2].EmbryoNumber})
	assert.Len(t, days[3].Embryos, 1)

	nonEmpty := NonEmptyDays(days)
	require.Len(t, nonEmpty, 2)
	assert.Equal(t, 3, nonEmpty[0].Day)
	assert.Equal(t, 5, nonEmpty[1].Day)
}

func TestGroupByDay_DoesNotReorderInput(t *testing.T) {
	embryos := []Embryo{{EmbryoNumber: 3, Day: 2}, {EmbryoNumber: 1, Day: 2}}
	GroupByDay(embryos)
	assert.Equal(t, 3, embryos[0].EmbryoNumber)
}
