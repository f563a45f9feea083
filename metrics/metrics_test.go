// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	c, err := New("acurast", registry)
	require.NoError(err)

	c.JobRegistered()
	c.Report(true, 90, 10)
	c.Report(false, 90, 10)
	c.Message("sent", 2)
	c.Canonicalized(7, 3, 1)

	require.Equal(1.0, testutil.ToFloat64(c.jobsRegistered))
	require.Equal(1.0, testutil.ToFloat64(c.reports.WithLabelValues("success")))
	require.Equal(180.0, testutil.ToFloat64(c.payouts))
	require.Equal(2.0, testutil.ToFloat64(c.messages.WithLabelValues("sent")))
	require.Equal(7.0, testutil.ToFloat64(c.bestCanonicalized))

	// registering twice fails
	_, err = New("acurast", registry)
	require.Error(err)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.JobRegistered()
		c.Report(true, 1, 1)
		c.Canonicalized(1, 1, 1)
	})
}
