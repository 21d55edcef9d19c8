package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRequirementsAreExhaustive(t *testing.T) {
	require.NoError(t, DefaultRequirements().Validate())

	partial := DefaultRequirements()
	delete(partial, LicenseC1)
	err := partial.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C1")
}

func TestLicenseClassDecodesLabelsAndCodes(t *testing.T) {
	var payload struct {
		Class LicenseClass                   `json:"class"`
		Dates map[LicenseClass]ClassDuration `json:"dates"`
	}
	raw := `{"class":"B cơ khí","dates":{"B tự động":{"endDate":"2024-01-05"},"C1":{"endDate":"2024-03-05"}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, LicenseB2, payload.Class)
	assert.Equal(t, "2024-01-05", payload.Dates[LicenseB1].EndDate)
	assert.Equal(t, "2024-03-05", payload.Dates[LicenseC1].EndDate)
}

func TestLicenseClassKeepsUnknownValues(t *testing.T) {
	var class LicenseClass
	require.NoError(t, json.Unmarshal([]byte(`"A1"`), &class))
	assert.Equal(t, LicenseClass("A1"), class)
	assert.False(t, class.Valid())
	assert.Equal(t, "A1", class.Label())
}

func TestParseLicenseClass(t *testing.T) {
	class, err := ParseLicenseClass(" b1 ")
	require.NoError(t, err)
	assert.Equal(t, LicenseB1, class)
	assert.Equal(t, "B tự động", class.Label())

	_, err = ParseLicenseClass("Z")
	assert.Error(t, err)
}
