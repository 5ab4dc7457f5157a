package health

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Text(t *testing.T) {
	assert.Equal(t, "healthy", StatusHealthy.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
	assert.Equal(t, "unhealthy", StatusUnhealthy.String())
	assert.Equal(t, "Status(7)", Status(7).String())

	b, err := json.Marshal(Result{Status: StatusDegraded, Message: "slow"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"degraded","message":"slow"}`, string(b))

	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"status":"Unhealthy"}`), &r))
	assert.Equal(t, StatusUnhealthy, r.Status)

	_, err = ParseStatus("sick")
	assert.Error(t, err)
}

func TestWorse(t *testing.T) {
	assert.Equal(t, StatusDegraded, Worse(StatusHealthy, StatusDegraded))
	assert.Equal(t, StatusUnhealthy, Worse(StatusUnhealthy, StatusDegraded))
	assert.Equal(t, StatusHealthy, Worse(StatusHealthy, StatusHealthy))
}
