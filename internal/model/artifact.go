package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
)

// Artifact сериализованная форма обученной модели. После обучения
// неизменяема: сервис загружает её один раз и читает без блокировок.
type Artifact struct {
	SchemaVersion   int         `json:"schema_version"`
	Columns         []string    `json:"columns"`
	LearningRate    float64     `json:"learning_rate"`
	InitialScore    float64     `json:"initial_score"`
	Trees           []*treeNode `json:"trees"`
	TrainedAt       time.Time   `json:"trained_at"`
	TrainAccuracy   float64     `json:"train_accuracy"`
	HoldoutAccuracy float64     `json:"holdout_accuracy"`
}

// Model обёртка над артефактом для скоринга
type Model struct {
	artifact *Artifact
}

// PredictProba вероятность класса "фишинг" для одного вектора признаков
func (m *Model) PredictProba(x schema.FeatureVector) float64 {
	score := m.artifact.InitialScore
	for _, tree := range m.artifact.Trees {
		score += m.artifact.LearningRate * tree.predict(x)
	}
	return sigmoid(score)
}

// Predict метка класса: 1 фишинг, 0 нет
func (m *Model) Predict(x schema.FeatureVector) int {
	if m.PredictProba(x) >= 0.5 {
		return 1
	}
	return 0
}

// Save записывает артефакт на диск
func (m *Model) Save(path string) error {
	m.artifact.TrainedAt = time.Now().UTC()

	data, err := json.Marshal(m.artifact)
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", path, err)
	}
	return nil
}

// LoadArtifact загружает артефакт и сверяет его схему с живой.
// Артефакт, обученный на другой версии схемы, использовать нельзя:
// это главный инвариант всей системы.
func LoadArtifact(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}

	if art.SchemaVersion != schema.Version {
		return nil, fmt.Errorf("artifact schema v%d does not match live schema v%d, retrain required",
			art.SchemaVersion, schema.Version)
	}

	live := schema.Columns()
	if len(art.Columns) != len(live) {
		return nil, fmt.Errorf("artifact has %d columns, live schema has %d, retrain required",
			len(art.Columns), len(live))
	}
	for i := range live {
		if art.Columns[i] != live[i] {
			return nil, fmt.Errorf("artifact column %d is %q, live schema has %q, retrain required",
				i, art.Columns[i], live[i])
		}
	}

	if len(art.Trees) == 0 {
		return nil, fmt.Errorf("artifact %s has no trees", path)
	}

	return &Model{artifact: &art}, nil
}

// Info краткая сводка для логов при старте сервиса
func (m *Model) Info() string {
	return fmt.Sprintf("schema v%d, %d trees, holdout accuracy %.3f, trained at %s",
		m.artifact.SchemaVersion, len(m.artifact.Trees),
		m.artifact.HoldoutAccuracy, m.artifact.TrainedAt.Format(time.RFC3339))
}
