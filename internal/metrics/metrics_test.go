package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordGatewayCall(t *testing.T) {
	before := testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("test", "list", "error"))
	RecordGatewayCall("test", "list", 5*time.Millisecond, errors.New("down"))
	after := testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("test", "list", "error"))
	if after != before+1 {
		t.Errorf("error calls went from %v to %v", before, after)
	}
}

func TestSetCacheSize(t *testing.T) {
	SetCacheSize(3, 17)
	if got := testutil.ToFloat64(cachedParentKeys); got != 3 {
		t.Errorf("parent keys = %v", got)
	}
	if got := testutil.ToFloat64(cachedNodes); got != 17 {
		t.Errorf("nodes = %v", got)
	}
}

func TestSetGatewayOnline(t *testing.T) {
	SetGatewayOnline(false)
	if testutil.ToFloat64(gatewayOnline) != 0 {
		t.Error("gauge not 0 when offline")
	}
	SetGatewayOnline(true)
	if testutil.ToFloat64(gatewayOnline) != 1 {
		t.Error("gauge not 1 when online")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordVoteDivergence()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "swalang_vote_divergence_total") {
		t.Error("divergence counter missing from output")
	}
}
