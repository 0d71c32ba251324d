package operators

import (
	"testing"

	errors "bbps-hub/errors"
	models "bbps-hub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParameters(t *testing.T) {
	op := &models.Operator{
		OperatorID: "OP1",
		Parameters: []models.OperatorParameter{
			{Name: "consumer_number", Type: models.ParamNumber, Required: true, Validation: &models.ParameterValidation{MinLength: 5, MaxLength: 12, Pattern: "^[0-9]+$"}},
			{Name: "cycle", Type: models.ParamDropdown, Options: []string{"A", "B"}},
			{Name: "dob", Type: models.ParamDate},
		},
	}

	tests := []struct {
		name    string
		params  map[string]any
		wantErr []string
	}{
		{"valid", map[string]any{"consumer_number": "12345", "cycle": "A"}, nil},
		{"number as json number", map[string]any{"consumer_number": 1234567.0}, nil},
		{"missing required", map[string]any{"cycle": "B"}, []string{"consumer_number: is required"}},
		{"empty required", map[string]any{"consumer_number": ""}, []string{"consumer_number: is required"}},
		{"too short", map[string]any{"consumer_number": "123"}, []string{"at least 5"}},
		{"not a number", map[string]any{"consumer_number": "12a45"}, []string{"must be a number", "invalid format"}},
		{"bad option", map[string]any{"consumer_number": "12345", "cycle": "C"}, []string{"cycle: must be one of A, B"}},
		{"bad date", map[string]any{"consumer_number": "12345", "dob": "yesterday"}, []string{"dob: must be a date"}},
		{"extra keys pass", map[string]any{"consumer_number": "12345", "note": "x"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParameters(op, tc.params)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.Invalid))
			for _, want := range tc.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateWithoutSchemaPasses(t *testing.T) {
	assert.NoError(t, ValidateParameters(&models.Operator{OperatorID: "OP1"}, nil))
	assert.NoError(t, ValidateParameters(nil, map[string]any{"a": 1}))
}

func TestValidateIgnoresBrokenPattern(t *testing.T) {
	op := &models.Operator{Parameters: []models.OperatorParameter{
		{Name: "account", Validation: &models.ParameterValidation{Pattern: "(["}},
	}}
	assert.NoError(t, ValidateParameters(op, map[string]any{"account": "x"}))
}

func TestValidateCountsCharactersNotBytes(t *testing.T) {
	op := &models.Operator{Parameters: []models.OperatorParameter{
		{Name: "holder", Validation: &models.ParameterValidation{MinLength: 4, MaxLength: 6}},
	}}

	assert.NoError(t, ValidateParameters(op, map[string]any{"holder": "अनिल"}))
	assert.NoError(t, ValidateParameters(op, map[string]any{"holder": "Zoë Ñu"}))
	assert.Error(t, ValidateParameters(op, map[string]any{"holder": "éé"}))
}
