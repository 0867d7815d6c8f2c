package models

import "testing"

func TestClampQuantity(t *testing.T) {
	cases := []struct {
		current   int
		requested int
		want      int
	}{
		{10, 3, 7},
		{3, 3, 0},
		{2, 5, 0},
		{0, 1, 0},
		{5, 0, 5},
	}
	for _, tc := range cases {
		if got := ClampQuantity(tc.current, tc.requested); got != tc.want {
			t.Fatalf("ClampQuantity(%d, %d) = %d, want %d", tc.current, tc.requested, got, tc.want)
		}
	}
}
