package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	// Counter helpers should not panic
	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		IncBooking("created")
		IncRelease("closed")
		IncExportJob("pending")
		IncCache("hit")
		AddRevenue(5.0)
		AddRevenue(-1.0) // negative amounts are dropped
	})
}
