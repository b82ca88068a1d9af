package money

import "testing"

func TestApplyModes(t *testing.T) {
	cases := []struct {
		name string
		mode Mode
		inc  Money
		in   Money
		want Money
	}{
		{"none keeps value", ModeNone, 5, 1003, 1003},
		{"round half up", ModeRound, 5, 1003, 1005},
		{"round half down", ModeRound, 5, 1002, 1000},
		{"round up ceiling", ModeRoundUp, 5, 1001, 1005},
		{"round down floor", ModeRoundDown, 5, 1004, 1000},
		{"nearest increment", ModeNearest, 25, 1012, 1000},
		{"nearest increment up", ModeNearest, 25, 1013, 1025},
		{"exact multiple untouched", ModeRound, 5, 1000, 1000},
		{"increment one is identity", ModeRound, 1, 1234, 1234},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Rounding{Mode: tc.mode, Increment: tc.inc}.Apply(tc.in)
			if got != tc.want {
				t.Fatalf("Apply(%d) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestApplyNegative(t *testing.T) {
	r := Rounding{Mode: ModeRoundUp, Increment: 10}
	if got := r.Apply(-5); got != 0 {
		t.Fatalf("expected ceiling of -5 to be 0, got %d", got)
	}
	r.Mode = ModeRoundDown
	if got := r.Apply(-5); got != -10 {
		t.Fatalf("expected floor of -5 to be -10, got %d", got)
	}
}

func TestPercentBps(t *testing.T) {
	if got := PercentBps(3000, 1000); got != 300 {
		t.Fatalf("10%% of 3000 = %d, want 300", got)
	}
	// half rounds up: 2.5% of 1000 = 25, 1.25% of 1000 = 12.5 -> 13
	if got := PercentBps(1000, 125); got != 13 {
		t.Fatalf("1.25%% of 1000 = %d, want 13", got)
	}
	if got := PercentBps(-100, 1000); got != 0 {
		t.Fatalf("negative base yields %d, want 0", got)
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("sideways"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	mode, err := ParseMode(" Round_Up ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mode != ModeRoundUp {
		t.Fatalf("got %q", mode)
	}
}
