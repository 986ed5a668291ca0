// Package dataset собирает обучающую таблицу из двух корпусов отчётов:
// фишингового и доброкачественного. Метка назначается по корпусу целиком,
// не по отдельной строке.
package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/Phishtrap/internal/report"
	"github.com/BetterCallFirewall/Phishtrap/internal/schema"
)

const (
	LabelPhishing = 1
	LabelBenign   = 0
)

// labelColumn имя колонки с меткой в CSV, как в оригинальном датасете
const labelColumn = "class"

// Table обучающая таблица: признаки + метки, строки в порядке вставки
type Table struct {
	Columns []string
	X       []schema.FeatureVector
	Y       []int
}

// Build прогоняет оба корпуса через парсер и нормализатор, помечает
// строки по корпусу и сохраняет объединённую таблицу в CSV.
// Один повреждённый отчёт останавливает всю сборку: порча датасета на
// этапе обучения - главный источник выученного смещения.
func Build(ctx context.Context, phishingDir, benignDir, outPath string) (*Table, error) {
	var phishing, benign []schema.FeatureVector

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		phishing, err = buildCorpus(ctx, phishingDir)
		if err != nil {
			return fmt.Errorf("phishing corpus: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		benign, err = buildCorpus(ctx, benignDir)
		if err != nil {
			return fmt.Errorf("benign corpus: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := &Table{
		Columns: schema.Columns(),
		X:       make([]schema.FeatureVector, 0, len(phishing)+len(benign)),
		Y:       make([]int, 0, len(phishing)+len(benign)),
	}
	for _, vec := range phishing {
		table.X = append(table.X, vec)
		table.Y = append(table.Y, LabelPhishing)
	}
	for _, vec := range benign {
		table.X = append(table.X, vec)
		table.Y = append(table.Y, LabelBenign)
	}

	log.Printf("📦 Dataset: %d phishing rows, %d benign rows", len(phishing), len(benign))

	if outPath != "" {
		if err := table.SaveCSV(outPath); err != nil {
			return nil, err
		}
	}

	return table, nil
}

// buildCorpus читает все отчёты каталога, каждая ссылка даёт одну строку
func buildCorpus(ctx context.Context, dir string) ([]schema.FeatureVector, error) {
	var vectors []schema.FeatureVector

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rep, err := report.ParseFile(path)
		if err != nil {
			return err
		}

		rows := report.Flatten(rep)
		if len(rows) == 0 {
			// страница без исходящих ссылок не даёт строк
			log.Printf("⚠️ Report %s has no links, skipping", filepath.Base(path))
			return nil
		}

		vecs, err := schema.Normalize(rows)
		if err != nil {
			return fmt.Errorf("report %s: %w", path, err)
		}

		vectors = append(vectors, vecs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

// SaveCSV сохраняет таблицу: заголовок - колонки схемы плюс class
func (t *Table) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := append(append([]string{}, t.Columns...), labelColumn)
	if err := w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for i, vec := range t.X {
		for j, v := range vec {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.Itoa(t.Y[i])
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// LoadCSV читает таблицу и проверяет заголовок против живой схемы.
// Расхождение - жёсткая ошибка: датасет собран другой версией схемы.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty dataset", path)
	}

	header := records[0]
	want := append(append([]string{}, schema.Columns()...), labelColumn)
	if len(header) != len(want) {
		return nil, fmt.Errorf("%s: header has %d columns, schema v%d expects %d",
			path, len(header), schema.Version, len(want))
	}
	for i := range header {
		if header[i] != want[i] {
			return nil, fmt.Errorf("%s: column %d is %q, schema v%d expects %q",
				path, i, header[i], schema.Version, want[i])
		}
	}

	table := &Table{Columns: schema.Columns()}
	for i, record := range records[1:] {
		vec := make(schema.FeatureVector, len(record)-1)
		for j := 0; j < len(record)-1; j++ {
			v, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %s: %w", path, i+1, header[j], err)
			}
			vec[j] = v
		}
		label, err := strconv.Atoi(record[len(record)-1])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bad label: %w", path, i+1, err)
		}
		if label != LabelPhishing && label != LabelBenign {
			return nil, fmt.Errorf("%s: row %d: label %d is neither %d nor %d",
				path, i+1, label, LabelBenign, LabelPhishing)
		}
		table.X = append(table.X, vec)
		table.Y = append(table.Y, label)
	}

	return table, nil
}
