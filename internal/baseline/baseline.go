// Package baseline holds the reference estimators and scoring used to
// compare fitted signal models.
package baseline

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/happyhackingspace/cubam/model"
)

// ErrLengthMismatch is returned when estimates and truth differ in length.
var ErrLengthMismatch = errors.New("baseline: length mismatch")

// Vote is the majority vote summary of one item.
type Vote struct {
	Positive float64 // fraction of positive labels
	Count    int
}

// Votes summarises each item's labels. Items without labels have Count 0.
func Votes(ds *model.Dataset) []Vote {
	out := make([]Vote, ds.NumItems)
	for i, entries := range ds.ByItem {
		pos := 0
		for _, e := range entries {
			pos += e.Value
		}
		out[i].Count = len(entries)
		if len(entries) > 0 {
			out[i].Positive = float64(pos) / float64(len(entries))
		}
	}
	return out
}

// MajorityVote labels an item 1 when more than half of its labels are
// positive. With a non-nil src, uniform noise in (-0.5, 0.5)/count is
// added to the fraction to break ties.
func MajorityVote(ds *model.Dataset, src rand.Source) []int {
	var rng *rand.Rand
	if src != nil {
		rng = rand.New(src)
	}
	votes := Votes(ds)
	out := make([]int, len(votes))
	for i, v := range votes {
		frac := v.Positive
		if rng != nil && v.Count > 0 {
			frac += (rng.Float64() - 0.5) / float64(v.Count)
		}
		if frac > 0.5 {
			out[i] = 1
		}
	}
	return out
}

// Labels thresholds item latents of dimension dim. An item is positive
// when it lies nearer the all-ones vertex than its negation.
func Labels(xis []float64, dim int) []int {
	if dim < 1 {
		dim = 1
	}
	out := make([]int, len(xis)/dim)
	for i := range out {
		sum := 0.0
		for _, x := range xis[i*dim : (i+1)*dim] {
			sum += x
		}
		if sum > 0 {
			out[i] = 1
		}
	}
	return out
}

// Rates compares binary estimates with ground truth.
type Rates struct {
	Error      float64
	FalseAlarm float64 // positives among true negatives
	Miss       float64 // negatives among true positives
}

// ErrorRates computes error, false alarm and miss rates. A rate whose
// denominator is empty is reported as zero.
func ErrorRates(est, truth []int) (Rates, error) {
	if len(est) != len(truth) {
		return Rates{}, fmt.Errorf("%w: %d estimates, %d truths", ErrLengthMismatch, len(est), len(truth))
	}
	var wrong, neg, pos, falseAlarm, miss int
	for i := range est {
		if est[i] != truth[i] {
			wrong++
		}
		if truth[i] == 0 {
			neg++
			if est[i] != 0 {
				falseAlarm++
			}
		} else {
			pos++
			if est[i] == 0 {
				miss++
			}
		}
	}
	return Rates{
		Error:      ratio(wrong, len(est)),
		FalseAlarm: ratio(falseAlarm, neg),
		Miss:       ratio(miss, pos),
	}, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
