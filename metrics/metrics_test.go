package metrics

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(nil))
	assert.Equal(t, StatusError, Status(errors.New("boom")))
}

func TestObserveOperation(t *testing.T) {
	c := OperationsTotal.WithLabelValues("test", "op", StatusError)
	before := testutil.ToFloat64(c)
	ObserveOperation("test", "op", errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestAddAmount(t *testing.T) {
	before := testutil.ToFloat64(FeesTotal)
	AddAmount(FeesTotal, uint256.NewInt(250))
	AddAmount(FeesTotal, nil)
	AddAmount(FeesTotal, new(uint256.Int))
	assert.Equal(t, before+250, testutil.ToFloat64(FeesTotal))
}
