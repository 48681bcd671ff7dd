package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// node is one entry of the flat tree array. Leaves have left == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	impurity  float64
	nSamples  int
	weight    float64
	// value is the class distribution (classification, normalized) or the
	// weighted mean target (regression, length 1).
	value []float64
}

func (n *node) isLeaf() bool {
	return n.left < 0
}

// limits are the growth constraints shared by classifier and regressor.
type limits struct {
	maxDepth        int // <= 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // number of candidate features per split
}

// impurityFunc scores a node from its accumulated statistics.
type impurityFunc func(stats []float64, weight float64) float64

// builder grows a tree depth first. For classification stats hold weighted
// class counts; for regression they hold [sum(w*y), sum(w*y*y)].
type builder struct {
	X        mat.Matrix
	target   []float64 // class index or regression target
	weights  []float64
	nStats   int
	classify bool
	impurity impurityFunc
	limits   limits
	rng      *rand.Rand

	nFeatures   int
	nodes       []node
	importances []float64
	depth       int
}

const minImpurity = 1e-7

func (b *builder) accumulate(stats []float64, i int) {
	w := b.weights[i]
	if b.classify {
		stats[int(b.target[i])] += w
		return
	}
	y := b.target[i]
	stats[0] += w * y
	stats[1] += w * y * y
}

func (b *builder) leafValue(stats []float64, weight float64) []float64 {
	if b.classify {
		v := make([]float64, len(stats))
		for k, s := range stats {
			if weight > 0 {
				v[k] = s / weight
			}
		}
		return v
	}
	if weight == 0 {
		return []float64{0}
	}
	return []float64{stats[0] / weight}
}

func (b *builder) build(samples []int) {
	_, b.nFeatures = b.X.Dims()
	b.importances = make([]float64, b.nFeatures)
	b.grow(samples, 0)

	total := 0.0
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
}

// grow adds the node for samples and returns its index.
func (b *builder) grow(samples []int, depth int) int {
	if depth > b.depth {
		b.depth = depth
	}

	stats := make([]float64, b.nStats)
	weight := 0.0
	for _, i := range samples {
		b.accumulate(stats, i)
		weight += b.weights[i]
	}
	imp := b.impurity(stats, weight)

	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{
		feature:  -1,
		left:     -1,
		right:    -1,
		impurity: imp,
		nSamples: len(samples),
		weight:   weight,
		value:    b.leafValue(stats, weight),
	})

	n := len(samples)
	if (b.limits.maxDepth > 0 && depth >= b.limits.maxDepth) ||
		n < b.limits.minSamplesSplit ||
		n < 2*b.limits.minSamplesLeaf ||
		imp <= minImpurity {
		return idx
	}

	feature, threshold, ok := b.bestSplit(samples)
	if !ok {
		return idx
	}

	var left, right []int
	for _, i := range samples {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	nd := &b.nodes[idx]
	nd.feature = feature
	nd.threshold = threshold
	nd.left = l
	nd.right = r

	ln, rn := b.nodes[l], b.nodes[r]
	b.importances[feature] += weight*imp - ln.weight*ln.impurity - rn.weight*rn.impurity
	return idx
}

// candidateFeatures returns the features examined for one split.
func (b *builder) candidateFeatures() []int {
	all := make([]int, b.nFeatures)
	for j := range all {
		all[j] = j
	}
	k := b.limits.maxFeatures
	if k <= 0 || k >= b.nFeatures || b.rng == nil {
		return all
	}
	b.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:k]
	sort.Ints(picked)
	return picked
}

// bestSplit minimizes the weighted child impurity over candidate features
// and midpoints between consecutive distinct values.
func (b *builder) bestSplit(samples []int) (int, float64, bool) {
	n := len(samples)
	order := make([]int, n)
	leftStats := make([]float64, b.nStats)
	rightStats := make([]float64, b.nStats)
	totalStats := make([]float64, b.nStats)
	totalWeight := 0.0
	for _, i := range samples {
		b.accumulate(totalStats, i)
		totalWeight += b.weights[i]
	}

	bestScore := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range b.candidateFeatures() {
		copy(order, samples)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X.At(order[a], f) < b.X.At(order[c], f)
		})
		if b.X.At(order[0], f) == b.X.At(order[n-1], f) {
			continue
		}

		for k := range leftStats {
			leftStats[k] = 0
		}
		leftWeight := 0.0

		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			b.accumulate(leftStats, i)
			leftWeight += b.weights[i]

			cur, next := b.X.At(i, f), b.X.At(order[pos+1], f)
			if cur == next {
				continue
			}
			nLeft := pos + 1
			if nLeft < b.limits.minSamplesLeaf || n-nLeft < b.limits.minSamplesLeaf {
				continue
			}

			for k := range rightStats {
				rightStats[k] = totalStats[k] - leftStats[k]
			}
			rightWeight := totalWeight - leftWeight
			score := leftWeight*b.impurity(leftStats, leftWeight) +
				rightWeight*b.impurity(rightStats, rightWeight)

			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				threshold := cur + (next-cur)/2
				if threshold == next {
					threshold = cur
				}
				bestThreshold = threshold
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(stats []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	s := 1.0
	for _, c := range stats {
		p := c / weight
		s -= p * p
	}
	return s
}

func entropy(stats []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	s := 0.0
	for _, c := range stats {
		if c > 0 {
			p := c / weight
			s -= p * math.Log2(p)
		}
	}
	return s
}

func mse(stats []float64, weight float64) float64 {
	if weight <= 0 {
		return 0
	}
	mean := stats[0] / weight
	v := stats[1]/weight - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// resolveMaxFeatures maps the max_features setting onto a count.
// Accepted: "", "none", "auto" (all), "sqrt", "log2", or an integer string.
func resolveMaxFeatures(setting string, nFeatures int) (int, bool) {
	switch setting {
	case "", "none", "None", "auto":
		return nFeatures, true
	case "sqrt":
		return max(1, int(math.Sqrt(float64(nFeatures)))), true
	case "log2":
		return max(1, int(math.Log2(float64(nFeatures)))), true
	}
	k := 0
	for _, ch := range setting {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		k = k*10 + int(ch-'0')
	}
	if k <= 0 {
		return 0, false
	}
	return min(k, nFeatures), true
}

// newRand returns a seeded PCG source, or a randomly seeded one for seed < 0.
func newRand(seed int64) *rand.Rand {
	if seed < 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// apply returns the leaf index reached by row i of X.
func apply(nodes []node, X mat.Matrix, i int) int {
	idx := 0
	for !nodes[idx].isLeaf() {
		nd := &nodes[idx]
		if X.At(i, nd.feature) <= nd.threshold {
			idx = nd.left
		} else {
			idx = nd.right
		}
	}
	return idx
}

func countLeaves(nodes []node) int {
	c := 0
	for i := range nodes {
		if nodes[i].isLeaf() {
			c++
		}
	}
	return c
}
