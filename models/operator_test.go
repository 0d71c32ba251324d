package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorJSONKeys(t *testing.T) {
	op := Operator{
		OperatorID:   "172",
		OperatorName: "Jio Postpaid",
		IsActive:     true,
		Parameters:   []OperatorParameter{{Name: "mobile", Validation: &ParameterValidation{MinLength: 10, MaxLength: 10}}},
	}
	raw, err := json.Marshal(op)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "172", decoded["operatorId"])
	assert.Equal(t, "Jio Postpaid", decoded["operatorName"])
	assert.Equal(t, true, decoded["isActive"])
	assert.Contains(t, decoded, "lastSyncedAt")
	assert.NotContains(t, decoded, "operator_id")

	params := decoded["parameters"].([]any)
	validation := params[0].(map[string]any)["validation"].(map[string]any)
	assert.Equal(t, float64(10), validation["minLength"])
}
