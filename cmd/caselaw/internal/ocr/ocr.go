// Package ocr extracts decision text from photographs with the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultLanguage is the tesseract language pack tried first.
const DefaultLanguage = "tur"

// ErrUnsupported reports a file that is not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image")

// supportedExtensions are the accepted upload types.
var supportedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Tesseract runs the tesseract binary on image files.
type Tesseract struct {
	binary string
	lang   string
	logger *slog.Logger
}

// Option configures a Tesseract.
type Option func(*Tesseract)

// WithLanguage sets the language pack tried first. Empty skips straight to
// tesseract's default language.
func WithLanguage(lang string) Option {
	return func(t *Tesseract) {
		t.lang = lang
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tesseract) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTesseract returns an extractor that runs binary (looked up in PATH when
// it has no directory part).
func NewTesseract(binary string, opts ...Option) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	t := &Tesseract{
		binary: binary,
		lang:   DefaultLanguage,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ExtractText returns the text recognized in the image at path. If the
// configured language pack fails, tesseract is run again with its default
// language.
func (t *Tesseract) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ValidateImage(path); err != nil {
		return "", err
	}

	if t.lang != "" {
		text, err := t.run(ctx, path, "-l", t.lang)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		t.logger.Warn("OCR failed, retrying with default language", "path", path, "lang", t.lang, "error", err)
	}

	return t.run(ctx, path)
}

func (t *Tesseract) run(ctx context.Context, path string, extra ...string) (string, error) {
	args := append([]string{path, "stdout"}, extra...)
	cmd := exec.CommandContext(ctx, t.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", t.binary, err, msg)
		}
		return "", fmt.Errorf("run %s: %w", t.binary, err)
	}
	return stdout.String(), nil
}

// TextFile reads already recognized text from plain text files.
type TextFile struct{}

// ExtractText returns the contents of the UTF-8 text file at path.
func (TextFile) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not UTF-8 text", filepath.Base(path))
	}
	return string(data), nil
}

// ValidateImage checks that path names a JPEG or PNG file by both extension
// and content.
func ValidateImage(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	want, ok := supportedExtensions[ext]
	if !ok {
		return fmt.Errorf("%w: %s (want .jpg, .jpeg or .png)", ErrUnsupported, filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read image: %w", err)
	}

	if got := http.DetectContentType(head[:n]); got != want {
		return fmt.Errorf("%w: %s has content type %s", ErrUnsupported, filepath.Base(path), got)
	}
	return nil
}
