// Package model реализует градиентный бустинг над деревьями решений
// для бинарной классификации фишинга. Гиперпараметры повторяют
// эталонную конфигурацию: глубина 4, learning rate 0.7, сид 42.
package model

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"

	"github.com/BetterCallFirewall/Phishtrap/internal/dataset"
	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
)

// Config гиперпараметры обучения
type Config struct {
	NumTrees     int
	MaxDepth     int
	LearningRate float64
	MinLeaf      int
	SplitRatio   float64
	Seed         int64
}

// DefaultConfig конфигурация, на которой обучался исходный классификатор
func DefaultConfig() Config {
	return Config{
		NumTrees:     100,
		MaxDepth:     4,
		LearningRate: 0.7,
		MinLeaf:      1,
		SplitRatio:   0.2,
		Seed:         42,
	}
}

// treeNode узел регрессионного дерева. Лист хранит значение,
// внутренний узел - признак и порог (влево при v <= threshold).
type treeNode struct {
	Leaf      bool      `json:"leaf,omitempty"`
	Value     float64   `json:"value"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

func (n *treeNode) predict(x schema.FeatureVector) float64 {
	node := n
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// Split делит таблицу на обучающую и контрольную части.
// Разбиение случайное с фиксированным сидом, никогда не позиционное:
// строки таблицы идут корпусами подряд.
func Split(table *dataset.Table, ratio float64, seed int64) (train, holdout *dataset.Table) {
	n := len(table.X)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	holdoutSize := int(math.Round(float64(n) * ratio))
	trainIdx := indices[holdoutSize:]
	holdoutIdx := indices[:holdoutSize]

	return subset(table, trainIdx), subset(table, holdoutIdx)
}

func subset(table *dataset.Table, indices []int) *dataset.Table {
	out := &dataset.Table{
		Columns: table.Columns,
		X:       make([]schema.FeatureVector, 0, len(indices)),
		Y:       make([]int, 0, len(indices)),
	}
	for _, i := range indices {
		out.X = append(out.X, table.X[i])
		out.Y = append(out.Y, table.Y[i])
	}
	return out
}

// Train обучает ансамбль на таблице. Логистическая функция потерь,
// значение листа - ньютоновский шаг по остаткам.
func Train(cfg Config, table *dataset.Table) (*Model, error) {
	n := len(table.X)
	if n == 0 {
		return nil, fmt.Errorf("training table is empty")
	}

	positive := 0
	for _, y := range table.Y {
		positive += y
	}
	if positive == 0 || positive == n {
		return nil, fmt.Errorf("training table has a single class (%d of %d positive)", positive, n)
	}

	p := float64(positive) / float64(n)
	initial := math.Log(p / (1 - p))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = initial
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	trees := make([]*treeNode, 0, cfg.NumTrees)
	for m := 0; m < cfg.NumTrees; m++ {
		for i := 0; i < n; i++ {
			prob := sigmoid(scores[i])
			grad[i] = float64(table.Y[i]) - prob
			hess[i] = prob * (1 - prob)
		}

		tree := buildTree(table.X, grad, hess, indices, cfg.MaxDepth, cfg.MinLeaf)
		trees = append(trees, tree)

		for i := 0; i < n; i++ {
			scores[i] += cfg.LearningRate * tree.predict(table.X[i])
		}
	}

	return &Model{artifact: &Artifact{
		SchemaVersion: schema.Version,
		Columns:       schema.Columns(),
		LearningRate:  cfg.LearningRate,
		InitialScore:  initial,
		Trees:         trees,
	}}, nil
}

// buildTree жадно строит регрессионное дерево по градиентам
func buildTree(X []schema.FeatureVector, grad, hess []float64, indices []int, depth, minLeaf int) *treeNode {
	if depth == 0 || len(indices) < 2*minLeaf {
		return leaf(grad, hess, indices)
	}

	feature, threshold, ok := bestSplit(X, grad, indices, minLeaf)
	if !ok {
		return leaf(grad, hess, indices)
	}

	var left, right []int
	for _, i := range indices {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(X, grad, hess, left, depth-1, minLeaf),
		Right:     buildTree(X, grad, hess, right, depth-1, minLeaf),
	}
}

func leaf(grad, hess []float64, indices []int) *treeNode {
	var sumGrad, sumHess float64
	for _, i := range indices {
		sumGrad += grad[i]
		sumHess += hess[i]
	}
	value := 0.0
	if sumHess > 1e-12 {
		value = sumGrad / sumHess
	}
	return &treeNode{Leaf: true, Value: value}
}

// bestSplit ищет порог с максимальным уменьшением дисперсии остатков.
// Перебор признаков строго по порядку схемы, улучшение строгое -
// результат детерминирован независимо от сида.
func bestSplit(X []schema.FeatureVector, grad []float64, indices []int, minLeaf int) (int, float64, bool) {
	type sample struct {
		value float64
		grad  float64
	}

	n := len(indices)
	var total float64
	for _, i := range indices {
		total += grad[i]
	}

	bestGain := 1e-12
	bestFeature, bestThreshold := -1, 0.0

	samples := make([]sample, n)
	numFeatures := len(X[indices[0]])

	for f := 0; f < numFeatures; f++ {
		for k, i := range indices {
			samples[k] = sample{value: X[i][f], grad: grad[i]}
		}
		sort.Slice(samples, func(a, b int) bool { return samples[a].value < samples[b].value })

		if samples[0].value == samples[n-1].value {
			continue
		}

		var sumLeft float64
		for k := 0; k < n-1; k++ {
			sumLeft += samples[k].grad
			if samples[k].value == samples[k+1].value {
				continue
			}
			nLeft := k + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			sumRight := total - sumLeft
			gain := sumLeft*sumLeft/float64(nLeft) +
				sumRight*sumRight/float64(nRight) -
				total*total/float64(n)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (samples[k].value + samples[k+1].value) / 2
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

// Accuracy доля верных предсказаний модели на таблице
func (m *Model) Accuracy(table *dataset.Table) float64 {
	if len(table.X) == 0 {
		return 0
	}
	correct := 0
	for i, vec := range table.X {
		if m.Predict(vec) == table.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(table.X))
}

// TrainAndEvaluate полный оффлайн цикл: сплит, обучение, диагностика.
// Точность только логируется, порогом качества она не является.
func TrainAndEvaluate(cfg Config, table *dataset.Table) (*Model, error) {
	train, holdout := Split(table, cfg.SplitRatio, cfg.Seed)

	model, err := Train(cfg, train)
	if err != nil {
		return nil, err
	}

	model.artifact.TrainAccuracy = model.Accuracy(train)
	model.artifact.HoldoutAccuracy = model.Accuracy(holdout)

	log.Printf("Gradient Boosting Classifier : Accuracy on training Data: %.3f", model.artifact.TrainAccuracy)
	log.Printf("Gradient Boosting Classifier : Accuracy on test Data: %.3f", model.artifact.HoldoutAccuracy)

	return model, nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
