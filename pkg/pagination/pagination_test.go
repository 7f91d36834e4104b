package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   Params
		want Params
	}{
		{Params{}, Params{Limit: DefaultLimit}},
		{Params{Limit: -3, Offset: -1}, Params{Limit: DefaultLimit}},
		{Params{Limit: 10, Offset: 20}, Params{Limit: 10, Offset: 20}},
		{Params{Limit: MaxLimit + 1}, Params{Limit: MaxLimit}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Fatalf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
