package compare

import "testing"

func TestPartitionWindowsEvenSplit(t *testing.T) {
	got := partitionWindows(10, 5)
	want := [][2]int{{0, 5}, {5, 10}}
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPartitionWindowsShortLastWindow(t *testing.T) {
	got := partitionWindows(12, 5)
	want := [][2]int{{0, 5}, {5, 10}, {10, 12}}
	if len(got) != len(want) {
		t.Fatalf("got %d windows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("window %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPartitionWindowsBelowSizeYieldsOneWindow(t *testing.T) {
	got := partitionWindows(3, 10)
	if len(got) != 1 || got[0] != [2]int{0, 3} {
		t.Fatalf("got %v, want single window [0,3)", got)
	}
}

func TestPartitionWindowsZeroFramesYieldsNone(t *testing.T) {
	got := partitionWindows(0, 10)
	if len(got) != 0 {
		t.Fatalf("got %d windows for 0 frames, want 0", len(got))
	}
}

func TestPartitionWindowsNonPositiveSizeUsesWholeSequence(t *testing.T) {
	got := partitionWindows(7, 0)
	if len(got) != 1 || got[0] != [2]int{0, 7} {
		t.Fatalf("got %v, want single window [0,7)", got)
	}
}

func TestFormatTimestampBelowHour(t *testing.T) {
	cases := map[float64]string{
		0:    "00:00",
		59.4: "00:59",
		59.6: "01:00",
		125:  "02:05",
	}
	for secs, want := range cases {
		if got := formatTimestamp(secs); got != want {
			t.Fatalf("formatTimestamp(%v) = %q, want %q", secs, got, want)
		}
	}
}

func TestFormatTimestampAboveHour(t *testing.T) {
	got := formatTimestamp(3725)
	if got != "01:02:05" {
		t.Fatalf("formatTimestamp(3725) = %q, want 01:02:05", got)
	}
}

func TestFrameTimeZeroFPSIsZero(t *testing.T) {
	if got := frameTime(100, 0); got != 0 {
		t.Fatalf("frameTime with zero fps = %v, want 0", got)
	}
}

func TestMeanEmptyIsZero(t *testing.T) {
	if got := mean(nil); got != 0 {
		t.Fatalf("mean(nil) = %v, want 0", got)
	}
}
