package vision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"sightspeak/internal/locale"
)

// OCR extracts text from an image. languageHint is a locale name or tag and
// selects a script-specific recognizer.
type OCR interface {
	RecognizeText(ctx context.Context, image []byte, languageHint string) (string, error)
}

var tesseractLangs = map[locale.Script]string{
	locale.ScriptLatin:    "eng",
	locale.ScriptChinese:  "chi_sim",
	locale.ScriptJapanese: "jpn",
	locale.ScriptKorean:   "kor",
}

// DefaultTesseractArgs read the image from stdin and print text to stdout.
var DefaultTesseractArgs = []string{"stdin", "stdout", "-l", "{lang}"}

// TesseractOCR runs the tesseract CLI. {lang} in Args is replaced with the
// traineddata name for the hint's script.
type TesseractOCR struct {
	Path string
	Args []string
}

// TesseractLang maps a language hint to a tesseract language code.
func TesseractLang(hint string) string {
	l, _ := locale.Parse(hint)
	if lang, ok := tesseractLangs[l.Script()]; ok {
		return lang
	}
	return tesseractLangs[locale.ScriptLatin]
}

func (t TesseractOCR) RecognizeText(ctx context.Context, img []byte, hint string) (string, error) {
	path := t.Path
	if path == "" {
		path = "tesseract"
	}
	tmpl := t.Args
	if len(tmpl) == 0 {
		tmpl = DefaultTesseractArgs
	}
	lang := TesseractLang(hint)
	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		args[i] = strings.ReplaceAll(a, "{lang}", lang)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(img)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("vision: ocr %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
