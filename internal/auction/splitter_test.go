package auction

import "testing"

func TestCreateLotsPassthrough(t *testing.T) {
	cases := []struct {
		name       string
		amount     uint64
		maxLotSize uint64
		maxCount   uint32
		split      bool
	}{
		{"split not requested", 1000, 100, 10, false},
		{"zero max count", 1000, 100, 0, true},
		{"zero max size", 1000, 0, 10, true},
		{"fits one lot", 100, 100, 10, true},
	}
	for _, tc := range cases {
		lots := CreateLots(tc.amount, 500, tc.maxLotSize, tc.maxCount, tc.split)
		if len(lots) != 1 || lots[0].Amount != tc.amount || lots[0].Target != 500 {
			t.Errorf("%s: lots = %+v, want single passthrough lot", tc.name, lots)
		}
	}
}

func TestCreateLotsConservation(t *testing.T) {
	cases := []struct {
		amount, target, maxLotSize uint64
		maxCount                   uint32
		wantCount                  int
	}{
		{1000, 333, 100, 20, 10},
		{1050, 333, 100, 20, 11}, // remainder absorbed by the final lot
		{1000, 500, 100, 4, 4},   // capped by max count
		{7, 3, 2, 10, 3},         // capped by target
	}
	for _, tc := range cases {
		lots := CreateLots(tc.amount, tc.target, tc.maxLotSize, tc.maxCount, true)
		if len(lots) != tc.wantCount {
			t.Errorf("amount=%d size=%d cap=%d: count = %d, want %d",
				tc.amount, tc.maxLotSize, tc.maxCount, len(lots), tc.wantCount)
		}
		var sumAmount, sumTarget uint64
		for _, lot := range lots {
			sumAmount += lot.Amount
			sumTarget += lot.Target
		}
		if sumAmount != tc.amount || sumTarget != tc.target {
			t.Errorf("amount=%d target=%d: sums %d/%d, conservation violated",
				tc.amount, tc.target, sumAmount, sumTarget)
		}
		if uint32(len(lots)) > tc.maxCount {
			t.Errorf("lot count %d exceeds cap %d", len(lots), tc.maxCount)
		}
	}
}

func TestCreateLotsSmallTargetKeepsTargetsPositive(t *testing.T) {
	// A target smaller than the lot count shrinks the count instead of
	// producing zero-target lots.
	lots := CreateLots(1000, 5, 100, 10, true)
	if len(lots) != 5 {
		t.Fatalf("count = %d, want 5", len(lots))
	}
	var sumAmount, sumTarget uint64
	for i, lot := range lots {
		if lot.Target == 0 {
			t.Errorf("lot %d has zero target", i)
		}
		sumAmount += lot.Amount
		sumTarget += lot.Target
	}
	if sumAmount != 1000 || sumTarget != 5 {
		t.Errorf("sums %d/%d, conservation violated", sumAmount, sumTarget)
	}
}

func TestCreateLotsEqualSizesExceptLast(t *testing.T) {
	lots := CreateLots(1050, 333, 100, 20, true)
	for i, lot := range lots[:len(lots)-1] {
		if lot.Amount != 95 || lot.Target != 30 {
			t.Errorf("lot %d = %+v, want {95 30}", i, lot)
		}
	}
	last := lots[len(lots)-1]
	if last.Amount != 100 || last.Target != 33 {
		t.Errorf("final lot = %+v, want {100 33}", last)
	}
}
