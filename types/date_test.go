package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2026-03-14", want: "2026-03-14"},
		{in: " 2026-03-14 ", want: "2026-03-14"},
		{in: "2026-03-14T23:10:00Z", want: "2026-03-14"},
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "14/03/2026", wantErr: true},
		{in: "2026-02-30", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestDate_JSON(t *testing.T) {
	type payload struct {
		Applied  Date `json:"applied"`
		FollowUp Date `json:"follow_up"`
	}

	data, err := json.Marshal(payload{Applied: DateOf(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":"2026-03-14","follow_up":null}`, string(data))

	var in payload
	require.NoError(t, json.Unmarshal([]byte(`{"applied":"2026-01-02","follow_up":""}`), &in))
	assert.Equal(t, "2026-01-02", in.Applied.String())
	assert.True(t, in.FollowUp.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"applied":20260102}`), &in))
}

func TestDate_ScanAndValue(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-03-14", d.String())

	require.NoError(t, d.Scan([]byte("2026-04-01")))
	assert.Equal(t, "2026-04-01", d.String())

	value, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", value)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	value, err = d.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	assert.Error(t, d.Scan(42))
}

func TestJobStatus_Valid(t *testing.T) {
	for _, status := range JobStatuses {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, JobStatus("ghosted").Valid())
	assert.False(t, JobStatus("").Valid())
}
