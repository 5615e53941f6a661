package auction

// Lot is one sub-auction produced by splitting an oversized reserve
// auction request.
type Lot struct {
	Amount uint64
	Target uint64
}

// CreateLots decomposes a reserve auction request into at most maxLotCount
// proportional lots, each at most roughly maxLotSize. Conservation is exact:
// the final lot absorbs the division remainders so amounts and targets sum
// to the originals. The lot count never exceeds the target, so every lot
// carries a positive target whenever the request does. When splitting is
// not requested, or the limits are unset, or the amount already fits one
// lot, the request passes through unsplit. The caller checks that the
// unauctioned reserve actually covers amount; the splitter only divides.
func CreateLots(amount, target, maxLotSize uint64, maxLotCount uint32, split bool) []Lot {
	if !split || maxLotCount == 0 || maxLotSize == 0 || amount <= maxLotSize {
		return []Lot{{Amount: amount, Target: target}}
	}
	count := (amount + maxLotSize - 1) / maxLotSize
	if count > uint64(maxLotCount) {
		count = uint64(maxLotCount)
	}
	if target > 0 && count > target {
		count = target
	}
	avgAmount := amount / count
	avgTarget := target / count
	lots := make([]Lot, count)
	for i := range lots {
		lots[i] = Lot{Amount: avgAmount, Target: avgTarget}
	}
	lots[count-1].Amount = amount - avgAmount*(count-1)
	lots[count-1].Target = target - avgTarget*(count-1)
	return lots
}
