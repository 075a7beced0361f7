package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Admitted("createCatalog")
	c.Admitted("removeCatalog")
	c.Finished("createCatalog", OutcomeCommitted)
	c.Rejected("createCatalog", ReasonConflict)
	c.SetVersion(7)
	c.CommitTimer()()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.inFlight))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.version))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("createCatalog", ReasonConflict)))

	expected := `
# HELP engine_mutations_admitted_total Engine mutations that passed admission.
# TYPE engine_mutations_admitted_total counter
engine_mutations_admitted_total{kind="createCatalog"} 1
engine_mutations_admitted_total{kind="removeCatalog"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "engine_mutations_admitted_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.commitDuration))
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Admitted("x")
		c.Rejected("x", ReasonTimeout)
		c.Finished("x", OutcomeFailed)
		c.SetVersion(1)
		c.CommitTimer()()
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
