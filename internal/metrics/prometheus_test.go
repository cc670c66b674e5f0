package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHTTPRequest(t *testing.T) {
	labels := prometheus.Labels{"method": "GET", "path": "/healthz", "status_code": "200"}
	before := testutil.ToFloat64(httpRequestsTotal.With(labels))

	RecordHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)

	if got := testutil.ToFloat64(httpRequestsTotal.With(labels)); got != before+1 {
		t.Errorf("Expected request counter to be %v, got %v", before+1, got)
	}
}

func TestRecordConfigRead(t *testing.T) {
	changes := testutil.ToFloat64(datasetConfigDigestChangesTotal)
	failures := testutil.ToFloat64(datasetConfigReadsTotal.With(prometheus.Labels{"status": "error"}))

	RecordConfigRead(nil, true)
	RecordConfigRead(nil, false)
	RecordConfigRead(errors.New("boom"), false)

	if got := testutil.ToFloat64(datasetConfigDigestChangesTotal); got != changes+1 {
		t.Errorf("Expected digest changes to be %v, got %v", changes+1, got)
	}
	if got := testutil.ToFloat64(datasetConfigReadsTotal.With(prometheus.Labels{"status": "error"})); got != failures+1 {
		t.Errorf("Expected failed reads to be %v, got %v", failures+1, got)
	}
}

func TestRecordDatasetLoad(t *testing.T) {
	RecordDatasetLoad(3, time.Second, nil)
	if got := testutil.ToFloat64(datasetsLoaded); got != 3 {
		t.Errorf("Expected 3 loaded datasets, got %v", got)
	}

	RecordDatasetLoad(0, time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(datasetsLoaded); got != 3 {
		t.Errorf("Expected a failed load to keep the gauge at 3, got %v", got)
	}
}
