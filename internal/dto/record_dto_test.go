package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlexibleStringAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A FlexibleString  `json:"a"`
		B FlexibleString  `json:"b"`
		C FlexibleString  `json:"c"`
		D *FlexibleString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "7.0", "c": null}`), &payload))
	require.Equal(t, FlexibleString("12"), payload.A)
	require.Equal(t, FlexibleString("7.0"), payload.B)
	require.Equal(t, FlexibleString(""), payload.C)
	require.Nil(t, payload.D)

	require.Error(t, json.Unmarshal([]byte(`{"a": true}`), &payload))
}

func TestRecordUpsertRequestPatchKeepsAbsentFieldsNil(t *testing.T) {
	var req RecordUpsertRequest
	require.NoError(t, json.Unmarshal([]byte(`{"id": "1001", "serial": 4, "name": "Rahim"}`), &req))

	patch := req.Patch()
	require.Equal(t, "1001", patch.ID)
	require.NotNil(t, patch.Serial)
	require.Equal(t, "4", *patch.Serial)
	require.Equal(t, "Rahim", *patch.Name)
	require.Nil(t, patch.Father)
	require.Nil(t, patch.DOB)
}

func TestRecordRowCoercesSerial(t *testing.T) {
	row := RecordRow{Serial: "x", ID: "9", Name: "Asha"}
	require.Equal(t, 0, row.Record().Serial)

	row.Serial = "15"
	require.Equal(t, 15, row.Record().Serial)
}
