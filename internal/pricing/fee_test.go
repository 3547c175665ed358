package pricing

import "testing"

func TestAdditionalChargeBoundaries(t *testing.T) {
	cases := []struct {
		price int64
		want  int64
	}{
		{0, 0},
		{9_999, 0},
		{10_000, 5_000},  // 100 naira
		{50_000, 5_000},  // 500 naira, inclusive upper edge
		{50_100, 10_000}, // 501 naira
		{200_000, 10_000},
		{200_100, 20_000},
		{500_000, 20_000},
		{1_500_000, 30_000},
		{3_000_000, 50_000},        // 30,000 naira
		{3_100_000, 55_000},        // 31,000 naira -> 550
		{3_100_100, 60_000},        // one kobo into the next step
		{5_000_000, 50_000 + 20*5_000},
	}
	for _, c := range cases {
		if got := AdditionalCharge(c.price); got != c.want {
			t.Errorf("AdditionalCharge(%d) = %d, want %d", c.price, got, c.want)
		}
	}
}

func TestFinalPriceMonotonic(t *testing.T) {
	// The buyer-facing price must never decrease as the list price
	// increases, including across every band boundary.
	var prev int64 = -1
	for p := int64(1); p <= 3_300_000; p += 97 {
		fp, err := FinalPrice(p)
		if err != nil {
			t.Fatalf("FinalPrice(%d): %v", p, err)
		}
		if fp < prev {
			t.Fatalf("FinalPrice not monotonic at %d: %d < %d", p, fp, prev)
		}
		prev = fp
	}
}

func TestFinalPriceRejectsNonPositive(t *testing.T) {
	for _, p := range []int64{0, -1, -50_000} {
		if _, err := FinalPrice(p); err != ErrInvalidPrice {
			t.Errorf("FinalPrice(%d) err = %v, want ErrInvalidPrice", p, err)
		}
	}
}
