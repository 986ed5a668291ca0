package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadReport означает нечитаемый или повреждённый отчёт экстрактора
var ErrBadReport = errors.New("bad extraction report")

// атрибуты уровня страницы, которые реплицируются на каждую строку.
// Всё остальное на уровне страницы (агрегатные счётчики) отбрасывается.
var pageAttributes = []string{
	"is_ssl_https",
	"url_entropy",
	"is_utf8_from_header",
	"contenttype_header_contains_text_html",
}

// ParentPrefix отделяет атрибуты страницы от атрибутов ссылки
const ParentPrefix = "parent_"

// Report разобранный отчёт внешнего экстрактора для одного URL
type Report struct {
	URL   string
	Page  map[string]float64
	Links []Link
}

// Link одна исходящая ссылка со страницы
type Link struct {
	URL    string
	Values map[string]float64
}

// Row строка обучающей/инференс таблицы: ссылка + контекст страницы
type Row struct {
	URL       string
	ParentURL string
	Values    map[string]float64
}

// ParseFile читает и разбирает файл отчёта
func ParseFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrBadReport, path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse разбирает отчёт из потока
func Parse(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading report: %v", ErrBadReport, err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: malformed json: %v", ErrBadReport, err)
	}

	urlRaw, ok := top["url"]
	if !ok {
		return nil, fmt.Errorf("%w: report has no url field", ErrBadReport)
	}
	var pageURL string
	if err := json.Unmarshal(urlRaw, &pageURL); err != nil {
		return nil, fmt.Errorf("%w: url field is not a string: %v", ErrBadReport, err)
	}

	rep := &Report{
		URL:  pageURL,
		Page: make(map[string]float64, len(pageAttributes)),
	}

	for _, name := range pageAttributes {
		fieldRaw, ok := top[name]
		if !ok {
			return nil, fmt.Errorf("%w: report has no %s field", ErrBadReport, name)
		}
		v, err := decodeNumeric(fieldRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: page field %s: %v", ErrBadReport, name, err)
		}
		rep.Page[name] = v
	}

	linksRaw, ok := top["hyprlinks"]
	if !ok {
		return nil, fmt.Errorf("%w: report has no hyprlinks field", ErrBadReport)
	}
	var rawLinks []map[string]json.RawMessage
	if err := json.Unmarshal(linksRaw, &rawLinks); err != nil {
		return nil, fmt.Errorf("%w: hyprlinks is not an array of objects: %v", ErrBadReport, err)
	}

	for i, rawLink := range rawLinks {
		link := Link{Values: make(map[string]float64, len(rawLink))}
		for name, fieldRaw := range rawLink {
			if name == "url" {
				if err := json.Unmarshal(fieldRaw, &link.URL); err != nil {
					return nil, fmt.Errorf("%w: hyprlink %d: url is not a string: %v", ErrBadReport, i, err)
				}
				continue
			}
			v, err := decodeNumeric(fieldRaw)
			if err != nil {
				return nil, fmt.Errorf("%w: hyprlink %d: field %s: %v", ErrBadReport, i, name, err)
			}
			link.Values[name] = v
		}
		rep.Links = append(rep.Links, link)
	}

	return rep, nil
}

// Flatten разворачивает отчёт в строки: одна ссылка = одна строка,
// атрибуты страницы копируются с префиксом parent_.
// Страница без исходящих ссылок даёт пустой результат, это не ошибка.
func Flatten(rep *Report) []Row {
	rows := make([]Row, 0, len(rep.Links))

	for _, link := range rep.Links {
		row := Row{
			URL:       link.URL,
			ParentURL: rep.URL,
			Values:    make(map[string]float64, len(link.Values)+len(rep.Page)),
		}
		for name, v := range link.Values {
			row.Values[name] = v
		}
		for name, v := range rep.Page {
			row.Values[ParentPrefix+name] = v
		}
		rows = append(rows, row)
	}

	return rows
}

// decodeNumeric принимает как числа, так и булевы значения:
// экстрактор сериализует часть флагов как 0/1, часть как true/false
func decodeNumeric(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("value %s is neither number nor bool", string(raw))
}
