package metrics

import (
	"database/sql"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestUpdateDBPoolStats(t *testing.T) {
	UpdateDBPoolStats(sql.DBStats{
		InUse:              2,
		Idle:               3,
		OpenConnections:    5,
		MaxOpenConnections: 8,
	})

	require.Equal(t, 2.0, testutil.ToFloat64(DBConnectionPoolSize.WithLabelValues("active")))
	require.Equal(t, 3.0, testutil.ToFloat64(DBConnectionPoolSize.WithLabelValues("idle")))
	require.Equal(t, 5.0, testutil.ToFloat64(DBConnectionPoolSize.WithLabelValues("open")))
	require.Equal(t, 8.0, testutil.ToFloat64(DBConnectionPoolSize.WithLabelValues("max")))
}
