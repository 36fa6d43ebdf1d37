package compare

import "testing"

func TestCompareSSIMPerfectScoresValidate(t *testing.T) {
	scores := []float64{1.0, 1.0, 1.0, 1.0, 1.0, 1.0}
	verdict, err := CompareSSIM(scores, 3, 30, 0.99)
	if err != nil {
		t.Fatalf("CompareSSIM: %v", err)
	}
	if !verdict.IsValid {
		t.Fatalf("expected valid verdict for perfect SSIM scores, got %+v", verdict)
	}
	if verdict.WorstMetric != 1.0 {
		t.Fatalf("expected worst metric 1.0, got %v", verdict.WorstMetric)
	}
}

func TestCompareSSIMDroppedWindowInvalidates(t *testing.T) {
	scores := []float64{1.0, 1.0, 1.0, 0.10, 0.12, 0.11, 1.0, 1.0, 1.0}
	verdict, err := CompareSSIM(scores, 3, 30, 0.95)
	if err != nil {
		t.Fatalf("CompareSSIM: %v", err)
	}
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict: middle window is heavily degraded")
	}
	if verdict.WorstMetric > 0.2 {
		t.Fatalf("expected worst metric near 0.11, got %v", verdict.WorstMetric)
	}
}

func TestCompareSSIMEmptyScoresIsInvalid(t *testing.T) {
	verdict, err := CompareSSIM(nil, 3, 30, 0.95)
	if err != nil {
		t.Fatalf("CompareSSIM: %v", err)
	}
	if verdict.IsValid {
		t.Fatalf("expected invalid verdict for empty input")
	}
	if verdict.WorstMetric != 0 {
		t.Fatalf("expected zero worst metric for empty input, got %v", verdict.WorstMetric)
	}
}

func TestCompareSSIMWorstWindowOrderedAscending(t *testing.T) {
	scores := []float64{0.99, 0.5, 0.97, 0.3, 0.95, 0.8}
	verdict, err := CompareSSIM(scores, 2, 30, 0.99)
	if err != nil {
		t.Fatalf("CompareSSIM: %v", err)
	}
	for i := 1; i < len(verdict.WorstWindows); i++ {
		if verdict.WorstWindows[i-1].Aggregate > verdict.WorstWindows[i].Aggregate {
			t.Fatalf("worst windows not ascending by aggregate: %+v", verdict.WorstWindows)
		}
	}
}
