package cleaning

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 3, Day: 1}
	for _, in := range []string{"2024-03-01", "2024/03/01", " 2024-03-01 ", "2024-03-01 13:45:00", "2024-03-01T13:45:00Z", "03-01-24", "3/1/2024"} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, in := range []string{"2024-02-30", "yesterday", "2024-13-01", "01.03.2024"} {
		t.Run("invalid "+in, func(t *testing.T) {
			_, err := ParseDate(in)
			assert.Error(t, err)
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "1500.50", want: "1500.5"},
		{in: " 200 ", want: "200"},
		{in: "-200", want: "-200"},
		{in: "10.005", want: "10.01"},
		{in: "-10.005", want: "-10.01"},
		{in: "1e3", want: "1000"},
		{in: "1,500.00", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "Infinity", wantErr: true},
		{in: "10000000000000000", wantErr: true},
		{in: "9999999999999999.99", want: "9999999999999999.99"},
		{in: "9999999999999999.995", wantErr: true},
		{in: "1e15", want: "1000000000000000"},
		{in: "1e16", wantErr: true},
		{in: "1e400", wantErr: true},
		{in: "1e20000000", wantErr: true},
		{in: "1e2000000000", wantErr: true},
		{in: "-1e2000000000", wantErr: true},
		{in: "0e2000000000", wantErr: true},
		{in: "1e-2000000000", wantErr: true},
		{in: "0.000001", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseYear(t *testing.T) {
	y, err := ParseYear("2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)

	y, err = ParseYear("2024.0")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)

	for _, in := range []string{"2024.5", "dos mil", "0", "-1", "1e5", "2e2000000000", "2024e-2000000000"} {
		_, err := ParseYear(in)
		assert.Error(t, err, in)
	}
}

func TestParse_HugeExponentsFailFast(t *testing.T) {
	for _, in := range []string{"1e2000000000", "9e-2000000000", "0e2000000000"} {
		t.Run(in, func(t *testing.T) {
			done := make(chan error, 2)
			go func() {
				_, err := ParseMoney(in)
				done <- err
				_, err = ParseYear(in)
				done <- err
			}()
			for i := 0; i < 2; i++ {
				select {
				case err := <-done:
					assert.Error(t, err)
				case <-time.After(2 * time.Second):
					t.Fatalf("parsing %q did not return", in)
				}
			}
		})
	}
}
