package corosched

import "testing"

func TestPSquareQuantile_Basic(t *testing.T) {
	ps50 := newPSquareQuantile(0.5)

	for _, v := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10} {
		ps50.Update(v)
	}

	q := ps50.Quantile()
	if q < 4 || q > 7 {
		t.Errorf("P50 of 1-10 should be around 5-6, got %.2f", q)
	}
	if ps50.Count() != 10 {
		t.Errorf("Count should be 10, got %d", ps50.Count())
	}
}

func TestPSquareQuantile_WithFewSamples(t *testing.T) {
	ps := newPSquareQuantile(0.5)

	if ps.Quantile() != 0 {
		t.Errorf("Quantile with 0 samples should be 0, got %.2f", ps.Quantile())
	}

	ps.Update(100)
	if ps.Quantile() != 100 {
		t.Errorf("Quantile with 1 sample should be 100, got %.2f", ps.Quantile())
	}
}

func TestLatencySample_Snapshot(t *testing.T) {
	l := newLatencySample()
	for i := 1; i <= 20; i++ {
		l.observe(float64(i))
	}

	snap := l.snapshot()
	if snap.Count != 20 {
		t.Errorf("Count should be 20, got %d", snap.Count)
	}
	if snap.Mean <= 0 {
		t.Errorf("Mean should be positive, got %.2f", snap.Mean)
	}
	if snap.P50 <= 0 || snap.P50 > 20 {
		t.Errorf("P50 should fall within the observed range, got %.2f", snap.P50)
	}
}

func TestLatencySample_EmptySnapshot(t *testing.T) {
	l := newLatencySample()
	snap := l.snapshot()
	if snap.Count != 0 {
		t.Errorf("Count should be 0, got %d", snap.Count)
	}
	if snap.Mean != 0 {
		t.Errorf("Mean should be 0 for no observations, got %.2f", snap.Mean)
	}
}
