package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecast/domain/errs"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCreateDefaultsOutcomeIDs(t *testing.T) {
	r := NewRegistry()
	m, err := r.Create("LECTURE", "Which slide?", t0, []OutcomeSpec{{Name: "Yes"}, {Name: "No"}, {}})
	require.NoError(t, err)

	assert.Equal(t, []string{"0", "1", "2"}, m.OutcomeIDs())
	o, err := m.Outcome("2")
	require.NoError(t, err)
	assert.Equal(t, "2", o.Name)
	assert.Equal(t, "2", o.Book.Outcome)
}

func TestCreateRejects(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("", "x", t0, []OutcomeSpec{{ID: "a"}})
	assert.True(t, errs.Is(err, errs.InvalidInput))

	_, err = r.Create("M", "x", t0, nil)
	assert.True(t, errs.Is(err, errs.InvalidInput))

	_, err = r.Create("M", "x", t0, []OutcomeSpec{{ID: "a"}, {ID: "a"}})
	assert.True(t, errs.Is(err, errs.InvalidInput))
	assert.Equal(t, 0, r.Len())

	_, err = r.Create("M", "x", t0, []OutcomeSpec{{ID: "a"}})
	require.NoError(t, err)
	_, err = r.Create("M", "y", t0, []OutcomeSpec{{ID: "b"}})
	assert.True(t, errs.Is(err, errs.MarketAlreadyExists))
}

func TestResolveIsTerminal(t *testing.T) {
	r := NewRegistry()
	m, _ := r.Create("M", "x", t0, []OutcomeSpec{{ID: "a"}, {ID: "b"}})
	require.NoError(t, m.CheckActive())

	assert.True(t, errs.Is(m.Resolve("zzz"), errs.NotFound))
	assert.False(t, m.Resolved)

	require.NoError(t, m.Resolve("b"))
	assert.True(t, errs.Is(m.CheckActive(), errs.MarketResolved))
	assert.True(t, errs.Is(m.Resolve("a"), errs.AlreadyResolved))
	assert.Equal(t, "b", m.Winner)
}

func TestListAndGet(t *testing.T) {
	r := NewRegistry()
	r.Create("B", "", t0, []OutcomeSpec{{}})
	r.Create("A", "", t0, []OutcomeSpec{{}})
	r.Create("C", "", t0.Add(-time.Hour), []OutcomeSpec{{}})

	var ids []string
	for _, m := range r.List() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"C", "A", "B"}, ids)

	_, err := r.Get("nope")
	assert.True(t, errs.Is(err, errs.NotFound))
}
