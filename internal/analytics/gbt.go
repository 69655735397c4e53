package analytics

import "sort"

// Gradient boosted regression trees with squared error loss. Each
// boosting round fits a depth limited CART tree to the residuals of
// the running prediction. Training is deterministic: every round sees
// the full sample and ties between equally good splits resolve to the
// lowest feature index.

const (
	defaultEstimators   = 100
	defaultLearningRate = 0.1
	defaultMaxDepth     = 5
	minSamplesSplit     = 2
)

// treeNode is one node of a regression tree. Leaves carry Feature -1
// and a fitted Value; internal nodes route on x[Feature] <= Threshold.
type treeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(row []float64) float64 {
	for n.Feature >= 0 {
		if row[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// gbtModel is the serialized form of a trained ensemble.
type gbtModel struct {
	Init         float64     `json:"init"`
	LearningRate float64     `json:"learning_rate"`
	NFeatures    int         `json:"n_features"`
	Trees        []*treeNode `json:"trees"`
	Importances  []float64   `json:"importances"`
}

func (m *gbtModel) predict(row []float64) float64 {
	out := m.Init
	for _, t := range m.Trees {
		out += m.LearningRate * t.predict(row)
	}
	return out
}

type gbtTrainer struct {
	estimators   int
	learningRate float64
	maxDepth     int
}

func newGBTTrainer() gbtTrainer {
	return gbtTrainer{
		estimators:   defaultEstimators,
		learningRate: defaultLearningRate,
		maxDepth:     defaultMaxDepth,
	}
}

// fit trains the ensemble on x and y. len(x) must be at least
// minSamplesSplit and every row must have the same width.
func (t gbtTrainer) fit(x [][]float64, y []float64) *gbtModel {
	n := len(y)
	nFeatures := len(x[0])

	model := &gbtModel{
		Init:         meanOf(y),
		LearningRate: t.learningRate,
		NFeatures:    nFeatures,
		Trees:        make([]*treeNode, 0, t.estimators),
		Importances:  make([]float64, nFeatures),
	}

	// Residuals of the running prediction. Squared loss makes the
	// negative gradient exactly y - F(x).
	residual := make([]float64, n)
	current := make([]float64, n)
	for i := range current {
		current[i] = model.Init
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	builder := treeBuilder{
		x:           x,
		maxDepth:    t.maxDepth,
		importances: model.Importances,
	}

	for round := 0; round < t.estimators; round++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		builder.y = residual
		root := builder.build(indices, 0)
		model.Trees = append(model.Trees, root)

		for i := range current {
			current[i] += t.learningRate * root.predict(x[i])
		}
	}

	normalize(model.Importances)
	return model
}

// rSquared is the coefficient of determination of the model on the
// given sample.
func (m *gbtModel) rSquared(x [][]float64, y []float64) float64 {
	mean := meanOf(y)
	var ssRes, ssTot float64
	for i, row := range x {
		d := y[i] - m.predict(row)
		ssRes += d * d
		t := y[i] - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

type treeBuilder struct {
	x           [][]float64
	y           []float64
	maxDepth    int
	importances []float64
}

func (b treeBuilder) build(indices []int, depth int) *treeNode {
	if depth >= b.maxDepth || len(indices) < minSamplesSplit {
		return &treeNode{Feature: -1, Value: b.meanAt(indices)}
	}

	feature, threshold, gain := b.bestSplit(indices)
	if gain <= 0 {
		return &treeNode{Feature: -1, Value: b.meanAt(indices)}
	}

	b.importances[feature] += gain

	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit scans every feature with an exact greedy search and
// returns the split with the largest squared error reduction. Gain is
// zero when no split separates the sample.
func (b treeBuilder) bestSplit(indices []int) (feature int, threshold, gain float64) {
	n := len(indices)
	feature = -1

	var total, totalSq float64
	for _, i := range indices {
		total += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	parentSSE := totalSq - total*total/float64(n)

	order := make([]int, n)
	for f := 0; f < len(b.x[indices[0]]); f++ {
		copy(order, indices)
		sort.SliceStable(order, func(a, c int) bool {
			return b.x[order[a]][f] < b.x[order[c]][f]
		})

		var leftSum, leftSq float64
		for k := 0; k < n-1; k++ {
			i := order[k]
			leftSum += b.y[i]
			leftSq += b.y[i] * b.y[i]

			v, next := b.x[i][f], b.x[order[k+1]][f]
			if v == next {
				continue
			}

			nl := float64(k + 1)
			nr := float64(n - k - 1)
			rightSum := total - leftSum
			rightSq := totalSq - leftSq

			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if g := parentSSE - sse; g > gain {
				feature = f
				threshold = (v + next) / 2
				gain = g
			}
		}
	}

	return feature, threshold, gain
}

func (b treeBuilder) meanAt(indices []int) float64 {
	var sum float64
	for _, i := range indices {
		sum += b.y[i]
	}
	return sum / float64(len(indices))
}

func meanOf(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func normalize(v []float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
