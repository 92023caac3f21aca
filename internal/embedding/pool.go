package embedding

import "math"

// meanPool averages token vectors into one sentence vector. ok is false when
// there are no tokens or their widths differ.
func meanPool(tokens [][]float32) ([]float32, bool) {
	if len(tokens) == 0 || len(tokens[0]) == 0 {
		return nil, false
	}

	dim := len(tokens[0])
	sum := make([]float64, dim)
	for _, tok := range tokens {
		if len(tok) != dim {
			return nil, false
		}
		for i, v := range tok {
			sum[i] += float64(v)
		}
	}

	pooled := make([]float32, dim)
	n := float64(len(tokens))
	for i, v := range sum {
		pooled[i] = float32(v / n)
	}
	return pooled, true
}

// normalize scales v to unit length in place. A zero vector is left as is.
func normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// truncate cuts text to roughly maxTokens tokens, estimated at four
// characters per token.
func truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	limit := maxTokens * charsPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
