// Package scoring оркестрирует инференс для одного URL:
// Extracting → Parsing → Normalizing → Scoring → Done.
// Каждый этап либо продвигает запрос дальше, либо завершает его
// типизированной причиной отказа. Повторных попыток нет.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Phishtrap/internal/model"
	"github.com/BetterCallFirewall/Phishtrap/internal/report"
	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
)

// ErrInvalidURL присланная строка не похожа на http(s) URL
var ErrInvalidURL = errors.New("invalid url")

// тот же гейт, что у экстрактора: только абсолютные http(s) ссылки
var urlPattern = regexp.MustCompile(`^https?://\S+$`)

type extractorI interface {
	Extract(ctx context.Context, url string) (reportPath string, cleanup func(), err error)
}

// Scorer связывает экстрактор и загруженную модель.
// Конструируется явно при старте и передаётся по ссылке: модель
// неизменяема, конкурентные запросы читают её без координации.
type Scorer struct {
	extractor extractorI
	model     *model.Model
}

func NewScorer(ext extractorI, m *model.Model) *Scorer {
	return &Scorer{
		extractor: ext,
		model:     m,
	}
}

// Score полный цикл скоринга одного URL
func (s *Scorer) Score(ctx context.Context, url string) (*Verdict, error) {
	if !urlPattern.MatchString(url) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}

	// Extracting
	reportPath, cleanup, err := s.extractor.Extract(ctx, url)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.ScoreReportFile(reportPath, url)
}

// ScoreReportFile этапы Parsing → Done над готовым файлом отчёта
func (s *Scorer) ScoreReportFile(path, url string) (*Verdict, error) {
	// Parsing
	rep, err := report.ParseFile(path)
	if err != nil {
		return nil, err
	}

	// Normalizing
	rows := report.Flatten(rep)
	linkRows := len(rows)
	empty := linkRows == 0
	if empty {
		// страница без исходящих ссылок: скорим синтетическую строку
		// с нулевым профилем ссылок и реальными признаками страницы
		log.Printf("⚠️ %s has no outbound links, scoring zero-link profile", url)
		rows = []report.Row{syntheticRow(rep)}
	}

	vectors, err := schema.Normalize(rows)
	if err != nil {
		return nil, err
	}

	// Scoring: средняя вероятность по строкам, порядок строк не важен
	var sum float64
	for _, vec := range vectors {
		sum += s.model.PredictProba(vec)
	}
	probUnsafe := sum / float64(len(vectors))

	// Done
	return newVerdict(url, probUnsafe, linkRows, empty), nil
}

// syntheticRow строка для страницы без ссылок: все признаки ссылки
// нулевые, признаки родительской страницы берутся из отчёта
func syntheticRow(rep *report.Report) report.Row {
	row := report.Row{
		ParentURL: rep.URL,
		Values:    make(map[string]float64, schema.NumFeatures()),
	}
	for _, name := range schema.Columns() {
		row.Values[name] = 0
	}
	for name, v := range rep.Page {
		row.Values[report.ParentPrefix+name] = v
	}
	return row
}

// Verdict итоговая классификация, отдаётся вызывающему как есть
type Verdict struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Label             string    `json:"label"`
	ProbabilitySafe   float64   `json:"probability_safe"`
	ProbabilityUnsafe float64   `json:"probability_unsafe"`
	LinkRows          int       `json:"link_rows"`
	EmptyFeatureSet   bool      `json:"empty_feature_set,omitempty"`
	ScoredAt          time.Time `json:"scored_at"`
}

const (
	LabelSafe   = "safe"
	LabelUnsafe = "unsafe"
)

// newVerdict форматирует сырой выход модели: вероятности зажимаются
// в [0,1], округляются до двух знаков и в сумме дают ровно 1.0
func newVerdict(url string, probUnsafe float64, rows int, empty bool) *Verdict {
	probUnsafe = clamp01(probUnsafe)
	probUnsafe = round2(probUnsafe)
	probSafe := round2(1 - probUnsafe)

	label := LabelSafe
	if probUnsafe >= 0.5 {
		label = LabelUnsafe
	}

	return &Verdict{
		ID:                uuid.NewString(),
		URL:               url,
		Label:             label,
		ProbabilitySafe:   probSafe,
		ProbabilityUnsafe: probUnsafe,
		LinkRows:          rows,
		EmptyFeatureSet:   empty,
		ScoredAt:          time.Now().UTC(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
