// Package schema владеет канонической схемой признаков.
// Это единственный источник истины для порядка колонок: и оффлайн
// обучение, и онлайн скоринг обязаны проходить через Normalize,
// иначе модель получит смещённые признаки.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BetterCallFirewall/Phishtrap/internal/report"
)

// Version версия схемы признаков. Меняется вместе со списком колонок,
// артефакт модели с другой версией отвергается при загрузке.
const Version = 1

// канонический порядок: признаки ссылки в порядке объявления экстрактора,
// затем признаки родительской страницы
var columns = []string{
	"is_ssl_https",
	"url_entropy",
	"is_samesite",
	"is_external",
	"is_successful_response",
	"is_html",
	"is_javascript",
	"is_json",
	"is_css",
	"is_image",
	"is_video",
	"is_audio",
	"url_type_is_known",
	"is_html_from_url",
	"is_javascript_from_url",
	"is_json_from_url",
	"is_css_from_url",
	"is_image_from_url",
	"is_video_from_url",
	"is_audio_from_url",
	"is_document_from_url",
	"cannot_identify_from_url",
	"is_utf8_from_header",
	"is_html_from_content_header",
	"is_javascript_from_content_header",
	"is_json_from_content_header",
	"is_css_from_content_header",
	"is_xml_from_content_header",
	"is_csv_from_content_header",
	"is_plain_from_content_header",
	"is_image_from_content_header",
	"is_video_from_content_header",
	"is_audio_from_content_header",
	"is_xtoken_from_content_header",
	"is_message_from_content_header",
	"is_multipart_from_content_header",
	"is_not_usual_format_from_content_header",
	"content_length",
	"parent_is_ssl_https",
	"parent_url_entropy",
	"parent_is_utf8_from_header",
	"parent_contenttype_header_contains_text_html",
}

// идентификаторы и свободный текст в модель не попадают никогда
var denyList = map[string]struct{}{
	"url":        {},
	"parent_url": {},
	"Index":      {},
}

// FeatureVector значения признаков строго в порядке Columns()
type FeatureVector []float64

// SchemaMismatchError строка не совпала с канонической схемой.
// Это всегда жёсткая ошибка: тихое выравнивание колонок дало бы
// уверенный, но бессмысленный вердикт.
type SchemaMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected columns: %s", strings.Join(e.Extra, ", ")))
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

// Columns возвращает копию канонического порядка колонок
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// NumFeatures размерность вектора признаков
func NumFeatures() int {
	return len(columns)
}

// Normalize приводит сырые строки к каноническим векторам признаков.
// Порядок колонок на выходе фиксирован схемой и не зависит от входа.
func Normalize(rows []report.Row) ([]FeatureVector, error) {
	vectors := make([]FeatureVector, 0, len(rows))

	for i, row := range rows {
		vec, err := NormalizeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}

	return vectors, nil
}

// NormalizeRow нормализует одну строку
func NormalizeRow(row report.Row) (FeatureVector, error) {
	values := make(map[string]float64, len(row.Values))
	for name, v := range row.Values {
		if _, denied := denyList[name]; denied {
			continue
		}
		values[name] = v
	}

	if err := validate(values); err != nil {
		return nil, err
	}

	vec := make(FeatureVector, len(columns))
	for i, name := range columns {
		vec[i] = values[name]
	}
	return vec, nil
}

// validate требует точного совпадения множества колонок со схемой
func validate(values map[string]float64) error {
	var missing, extra []string

	for _, name := range columns {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(values) != len(columns) || len(missing) > 0 {
		known := make(map[string]struct{}, len(columns))
		for _, name := range columns {
			known[name] = struct{}{}
		}
		for name := range values {
			if _, ok := known[name]; !ok {
				extra = append(extra, name)
			}
		}
	}

	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return &SchemaMismatchError{Missing: missing, Extra: extra}
	}

	return nil
}
