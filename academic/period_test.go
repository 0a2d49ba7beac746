package academic_test

import (
	"testing"

	"github.com/orgdash/ledger-engine/academic"
	"github.com/orgdash/ledger-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels(t *testing.T) {
	tests := []struct {
		p    academic.AcademicPeriod
		want string
	}{
		{academic.AllYears, "All School Years"},
		{academic.New(2024, 2025, 0), "2024-2025 · All Semesters"},
		{academic.New(2024, 2025, 2024), "2024-2025 · 1st Semester"},
		{academic.New(2024, 2025, 2025), "2024-2025 · 2nd Semester"},
		{academic.New(2024, 2025, 2027), "2024-2025 · Segment 2027"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.Label())
	}
	assert.Equal(t, academic.SemesterSegment, academic.New(2024, 2025, 2027).Semester())
}

func TestMatches(t *testing.T) {
	rec := academic.New(2024, 2025, 2025)

	assert.True(t, academic.AllYears.Matches(rec))
	assert.True(t, academic.New(2024, 2025, 0).Matches(rec))
	assert.True(t, academic.New(2024, 2025, 2025).Matches(rec))
	assert.False(t, academic.New(2024, 2025, 2024).Matches(rec))
	assert.False(t, academic.New(2023, 2024, 0).Matches(rec))
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalize(t *testing.T) {
	p, err := academic.Normalize(academic.RawPeriod{Start: "2024", End: float64(2025), Active: "2025"})
	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), p)

	p, err = academic.Normalize(academic.RawPeriod{Label: "2023-2024"})
	require.NoError(t, err)
	assert.Equal(t, academic.New(2023, 2024, 0), p)

	p, err = academic.Normalize(academic.RawPeriod{Start: 2024, End: 2025, Active: "n/a"})
	require.NoError(t, err)
	assert.Equal(t, 0, p.ActiveYear, "unparseable active year means all semesters")

	_, err = academic.Normalize(academic.RawPeriod{Start: "SY", End: 2025})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestResolveActive_DirectWins(t *testing.T) {
	direct := &academic.RawPeriod{Start: 2024, End: 2025, Active: 2025}
	list := []academic.RawPeriod{{Start: 2023, End: 2024, Active: 2023, Status: "active"}}

	p, err := academic.ResolveActive(direct, list)
	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), p)
	assert.False(t, academic.NeedsList(direct))
}

func TestResolveActive_DirectMissingActiveYearFilledFromList(t *testing.T) {
	direct := &academic.RawPeriod{Start: 2024, End: 2025}
	list := []academic.RawPeriod{
		{Start: 2023, End: 2024, Active: 2024},
		{Start: 2024, End: 2025, Active: "2024"},
	}
	require.True(t, academic.NeedsList(direct))

	p, err := academic.ResolveActive(direct, list)
	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2024), p)
}

func TestResolveActive_FallsBackToActiveRowThenFirst(t *testing.T) {
	broken := &academic.RawPeriod{Start: "", End: nil}
	list := []academic.RawPeriod{
		{ID: "1", Start: 2022, End: 2023, Active: 2022, Status: "inactive"},
		{ID: "2", Start: 2024, End: 2025, Active: 2025, Status: "Active"},
	}

	p, err := academic.ResolveActive(broken, list)
	require.NoError(t, err)
	assert.Equal(t, academic.New(2024, 2025, 2025), p)

	list[1].Status = "archived"
	p, err = academic.ResolveActive(nil, list)
	require.NoError(t, err)
	assert.Equal(t, academic.New(2022, 2023, 2022), p)
}

func TestResolveActive_NothingUsable(t *testing.T) {
	_, err := academic.ResolveActive(nil, nil)
	assert.ErrorIs(t, err, generic.ErrPeriodUnavailable)

	_, err = academic.ResolveActive(&academic.RawPeriod{}, []academic.RawPeriod{{Label: "TBA"}})
	assert.ErrorIs(t, err, generic.ErrPeriodUnavailable)
}

func TestOptions_DistinctNewestFirst(t *testing.T) {
	list := []academic.RawPeriod{
		{Start: 2022, End: 2023, Active: 2022},
		{Start: 2024, End: 2025, Active: 2024},
		{Start: 2024, End: 2025, Active: 2025},
		{Label: "garbage"},
		{Start: 2023, End: 2024, Active: 2023},
	}
	assert.Equal(t, []academic.AcademicPeriod{
		academic.New(2024, 2025, 0),
		academic.New(2023, 2024, 0),
		academic.New(2022, 2023, 0),
	}, academic.Options(list))

	assert.Equal(t, []academic.AcademicPeriod{
		academic.New(2024, 2025, 0),
		academic.New(2024, 2025, 2024),
		academic.New(2024, 2025, 2025),
	}, academic.SemesterOptions(academic.New(2024, 2025, 2025)))
	assert.Nil(t, academic.SemesterOptions(academic.AllYears))
}
