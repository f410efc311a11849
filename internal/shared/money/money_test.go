package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"0.005":  "0.01",
		"0.004":  "0",
		"2.345":  "2.35",
		"10.999": "11",
	}
	for in, want := range cases {
		got := Round(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Round(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(20), decimal.NewFromInt(1))
	if !got.Equal(decimal.RequireFromString("0.20")) {
		t.Errorf("1%% of 20 = %s", got)
	}
	got = Percent(decimal.RequireFromString("0.33"), decimal.NewFromInt(2))
	if !got.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("2%% of 0.33 = %s", got)
	}
}

func TestParse(t *testing.T) {
	if d, err := Parse(" 10.50 "); err != nil || !d.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("Parse(10.50) = %s, %v", d, err)
	}
	for _, bad := range []string{"", "abc", "0", "-1", "1.001"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}
