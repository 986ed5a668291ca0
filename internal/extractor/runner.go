// Package extractor запускает внешний инструмент извлечения ссылок
// как отдельный процесс. Контракт текстовый и версионируемый: среди
// строк stdout инструмент печатает ровно одну вида "Written to <path>",
// где лежит готовый отчёт. Любое отклонение от контракта - отказ.
package extractor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/Phishtrap/internal/config"
)

// ErrExtractionUnavailable процесс упал, не уложился в таймаут или
// нарушил контракт вывода. Повторов нет: retry - политика транспорта.
var ErrExtractionUnavailable = errors.New("extraction unavailable")

// AnnouncePrefix фиксированный префикс строки-анонса пути отчёта
const AnnouncePrefix = "Written to "

// urlFileName файл с единственным URL, который получает инструмент
const urlFileName = "url.txt"

// Runner конфигурация запуска инструмента
type Runner struct {
	binaryPath  string
	scratchRoot string
	timeout     time.Duration
}

// NewRunner создает раннер с дефолтами для незаполненных полей
func NewRunner(cfg config.ExtractorConfig) *Runner {
	if cfg.ScratchRoot == "" {
		cfg.ScratchRoot = os.TempDir()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Runner{
		binaryPath:  cfg.BinaryPath,
		scratchRoot: cfg.ScratchRoot,
		timeout:     cfg.Timeout,
	}
}

// Extract прогоняет URL через инструмент и возвращает путь к отчёту.
// Каждый вызов работает в собственном scratch каталоге: два
// конкурентных запроса не могут затереть файлы друг друга.
// cleanup удаляет каталог, вызывающий обязан его defer-нуть.
func (r *Runner) Extract(ctx context.Context, url string) (reportPath string, cleanup func(), err error) {
	scratch := filepath.Join(r.scratchRoot, "phishtrap-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	cleanup = func() { _ = os.RemoveAll(scratch) }

	fail := func(err error) (string, func(), error) {
		cleanup()
		return "", nil, err
	}

	urlFile := filepath.Join(scratch, urlFileName)
	if err := os.WriteFile(urlFile, []byte(url+"\n"), 0o644); err != nil {
		return fail(fmt.Errorf("writing url file: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binaryPath, urlFile)
	// инструмент пишет отчёт относительно своего cwd
	cmd.Dir = scratch
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fail(fmt.Errorf("%w: timed out after %s", ErrExtractionUnavailable, r.timeout))
		}
		return fail(fmt.Errorf("%w: %v: %s", ErrExtractionUnavailable, err, firstLine(stderr.String())))
	}

	announced, err := parseAnnouncement(&stdout)
	if err != nil {
		return fail(err)
	}

	if !filepath.IsAbs(announced) {
		announced = filepath.Join(scratch, announced)
	}
	if _, err := os.Stat(announced); err != nil {
		return fail(fmt.Errorf("%w: announced report %s is not readable: %v", ErrExtractionUnavailable, announced, err))
	}

	return announced, cleanup, nil
}

// parseAnnouncement ищет строку-анонс в stdout процесса
func parseAnnouncement(out *bytes.Buffer) (string, error) {
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, AnnouncePrefix) {
			continue
		}
		path := strings.TrimSpace(line[len(AnnouncePrefix):])
		if path == "" {
			return "", fmt.Errorf("%w: announcement line has empty path", ErrExtractionUnavailable)
		}
		return path, nil
	}
	return "", fmt.Errorf("%w: no %q line in extractor output", ErrExtractionUnavailable, AnnouncePrefix)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
