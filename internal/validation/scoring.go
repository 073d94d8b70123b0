package validation

import (
	"math"

	"github.com/skyloop/skyloop/internal/flights"
	"github.com/skyloop/skyloop/internal/liveoffers"
	"github.com/skyloop/skyloop/internal/route"
	"github.com/skyloop/skyloop/pkg/epoch"
)

// scorer matches live offers against quoted segments.
type scorer struct {
	weights   MatchWeights
	tolerance float64
	majorPct  float64
}

// score rates one live offer against a quoted segment. Higher is a closer
// match; the result may be negative.
func (sc scorer) score(seg route.RouteSegment, offer liveoffers.Offer) float64 {
	var total float64

	if carrierKnown(seg) {
		if offer.CarrierCode == seg.CarrierCode {
			total += sc.weights.CarrierMatch
		} else {
			total += sc.weights.CarrierMismatch
		}
	}

	switch d := hourDistance(epoch.HourOfDay(seg.DepTime), offer.DepartureTime.UTC().Hour()); {
	case d == 0:
		total += sc.weights.DepHourExact
	case d <= 1:
		total += sc.weights.DepHourClose
	default:
		total += sc.weights.DepHourFar
	}

	switch diff := priceDiffPct(seg.Price, offer.Price); {
	case diff <= sc.tolerance:
		total += sc.weights.PriceClose
	case diff <= sc.majorPct:
		total += sc.weights.PriceNear
	default:
		total += sc.weights.PriceFar
	}

	if offer.NonStop() {
		total += sc.weights.NonStopBonus
	} else {
		total += float64(offer.Stops) * sc.weights.PerStopPenalty
	}

	return total
}

// maxScore is the best achievable score for this segment. Segments quoted
// with a placeholder carrier cannot earn carrier points, so their ceiling
// is lower.
func (sc scorer) maxScore(seg route.RouteSegment) float64 {
	max := sc.weights.MaxScore()
	if !carrierKnown(seg) {
		max -= sc.weights.CarrierMatch
	}
	return max
}

// confidence normalizes a raw score to [0, 100].
func (sc scorer) confidence(seg route.RouteSegment, score float64) float64 {
	max := sc.maxScore(seg)
	if max <= 0 {
		return 0
	}
	return math.Min(100, math.Max(0, score/max*100))
}

// bestMatch returns the highest-scoring offer for a segment and its raw
// score. ok is false when no offers were given.
func (sc scorer) bestMatch(seg route.RouteSegment, offers []liveoffers.Offer) (best liveoffers.Offer, score float64, ok bool) {
	for i, o := range offers {
		s := sc.score(seg, o)
		if i == 0 || s > score {
			best, score, ok = o, s, true
		}
	}
	return best, score, ok
}

func carrierKnown(seg route.RouteSegment) bool {
	return seg.CarrierCode != "" && seg.CarrierCode != flights.PlaceholderCarrier
}

// hourDistance is the circular distance between two hours of day.
func hourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 12 {
		d = 24 - d
	}
	return d
}

// priceDiffPct is the relative price difference in percent of the quoted
// price.
func priceDiffPct(quoted, live float64) float64 {
	if quoted == 0 {
		if live == 0 {
			return 0
		}
		return 100
	}
	return math.Abs(live-quoted) / quoted * 100
}
