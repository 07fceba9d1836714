package dump

import (
	"math"
)

// Diff compares two dumps of the same window: the token streams must match
// exactly and the score vectors are compared numerically.
type Diff struct {
	Tokens        int
	TokensEqual   bool
	FirstMismatch int // first differing token index, -1 when equal

	Scores       int // compared length, the shorter of the two
	LengthsEqual bool
	BitIdentical bool

	MaxAbs  float64
	MeanAbs float64
	RMSE    float64
	Cosine  float64

	Top1A     int
	Top1B     int
	Top1Match bool
	TopK      int
	Overlap   int // size of the intersection of both top-K sets
}

// Within reports whether b reproduces a: identical tokens, equal lengths,
// matching argmax and every score within tol.
func (d Diff) Within(tol float64) bool {
	return d.TokensEqual && d.LengthsEqual && d.Top1Match && d.MaxAbs <= tol
}

// Compare computes the Diff of two dumps. topK <= 0 skips the overlap.
func Compare(tokA []int32, scoresA []float32, tokB []int32, scoresB []float32, topK int) Diff {
	d := Diff{
		Tokens:        min(len(tokA), len(tokB)),
		TokensEqual:   len(tokA) == len(tokB),
		FirstMismatch: -1,
		LengthsEqual:  len(scoresA) == len(scoresB),
		BitIdentical:  len(scoresA) == len(scoresB),
	}
	for i := range d.Tokens {
		if tokA[i] != tokB[i] {
			d.TokensEqual = false
			d.FirstMismatch = i
			break
		}
	}
	if d.FirstMismatch < 0 && len(tokA) != len(tokB) {
		d.FirstMismatch = d.Tokens
	}

	n := min(len(scoresA), len(scoresB))
	d.Scores = n
	if n == 0 {
		d.Top1Match = d.LengthsEqual
		return d
	}

	var sumAbs, sumSq, dot, normA, normB float64
	for i := range n {
		a, b := float64(scoresA[i]), float64(scoresB[i])
		if math.Float32bits(scoresA[i]) != math.Float32bits(scoresB[i]) {
			d.BitIdentical = false
		}
		diff := math.Abs(a - b)
		sumAbs += diff
		sumSq += diff * diff
		d.MaxAbs = math.Max(d.MaxAbs, diff)
		dot += a * b
		normA += a * a
		normB += b * b
		if scoresA[i] > scoresA[d.Top1A] {
			d.Top1A = i
		}
		if scoresB[i] > scoresB[d.Top1B] {
			d.Top1B = i
		}
	}
	d.MeanAbs = sumAbs / float64(n)
	d.RMSE = math.Sqrt(sumSq / float64(n))
	if normA > 0 && normB > 0 {
		d.Cosine = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}
	d.Top1Match = d.Top1A == d.Top1B

	if topK > 0 {
		d.TopK = min(topK, n)
		inA := make(map[int]struct{}, d.TopK)
		for _, i := range topIndices(scoresA[:n], d.TopK) {
			inA[i] = struct{}{}
		}
		for _, i := range topIndices(scoresB[:n], d.TopK) {
			if _, ok := inA[i]; ok {
				d.Overlap++
			}
		}
	}
	return d
}

// topIndices returns the indices of the k largest values, largest first.
// Ties keep the lower index first.
func topIndices(vals []float32, k int) []int {
	if k <= 0 {
		return nil
	}
	k = min(k, len(vals))
	idx := make([]int, 0, k+1)
	for i, v := range vals {
		pos := len(idx)
		for j, cur := range idx {
			if v > vals[cur] {
				pos = j
				break
			}
		}
		if pos == len(idx) && len(idx) == k {
			continue
		}
		idx = append(idx, 0)
		copy(idx[pos+1:], idx[pos:])
		idx[pos] = i
		if len(idx) > k {
			idx = idx[:k]
		}
	}
	return idx
}
