package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySweepError(t *testing.T) {
	busy := errors.New("order_lock_busy")
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: fmt.Errorf("wrap: %w", context.DeadlineExceeded), want: SweepReasonDeadlineExceeded},
		{name: "lock_busy", err: fmt.Errorf("wrap: %w", busy), want: SweepReasonLockBusy},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SweepReasonDBLockTimeout},
		{name: "db", err: &pgconn.PgError{Code: "23505"}, want: SweepReasonDB},
		{name: "unknown", err: errors.New("boom"), want: SweepReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySweepError(tc.err, busy))
		})
	}
}

func TestSweeperMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := newSweeperMetrics(reg, Config{ServiceName: "mysteryart", Environment: "test"})
	require.NoError(t, err)

	m.ObserveRun(150 * time.Millisecond)
	m.IncRedriven("fulfilled")
	m.IncRedriven("fulfilled")
	m.IncError(SweepReasonDB)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.redriven.WithLabelValues("fulfilled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(SweepReasonDB)))
}

func TestRegisterCollectorReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)
	second, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)
	assert.Same(t, first.requests, second.requests)
}

func TestNilSweeperMetricsIsSafe(t *testing.T) {
	var m *SweeperMetrics
	m.ObserveRun(time.Second)
	m.ObserveRecordAge(time.Second)
	m.IncRedriven("failed")
	m.IncError(SweepReasonUnknown)
}
