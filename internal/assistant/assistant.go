// Package assistant implements the user-facing flows on top of the
// generation manager: spoken answers, scene descriptions, translation of
// camera text and voice commands.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"sightspeak/internal/locale"
	"sightspeak/internal/manager"
	"sightspeak/internal/speech"
	"sightspeak/internal/vision"
)

// MaxPromptRunes caps user prompts before they reach the model.
const MaxPromptRunes = 200

// TranslateChunkWords is the number of words spoken at once while translating.
const TranslateChunkWords = 20

// DefaultScenePrompt is used by Describe when the caller gives no prompt.
const DefaultScenePrompt = "You are an assistive AI describing scenes to a blind user.\n" +
	"Use clear, concise, and practical language.\n" +
	"Name objects if possible (e.g. chair, laptop, window).\n" +
	"Say where things are, using left, right, top, bottom, or center.\n" +
	"Avoid vague phrases like \"object\" or \"thing\".\n" +
	"Avoid poetic, abstract, or emotional language.\n" +
	"Do not ask questions. Just describe the scene."

const decisionTemplate = `Decide if the following prompt needs visual input. Respond "yes" or "no".

Q: What is on the table?
A: yes

Q: Who is speaking in this audio?
A: yes

Q: What does this mean in text?
A: no

Q: Where are shoes?
A: yes

Q: %s
A:`

var (
	// ErrNoTextDetected is returned by ReadAndTranslate when OCR finds nothing.
	ErrNoTextDetected = errors.New("no text detected in the image")
	// ErrNotConfigured is returned when a flow needs a collaborator that is missing.
	ErrNotConfigured = errors.New("collaborator not configured")

	greeting = regexp.MustCompile(`^(?:hi|hello|hey|how are you)\b`)
)

// Mode names the path a request took.
type Mode string

const (
	ModeText      Mode = "text"
	ModeVision    Mode = "vision"
	ModeTranslate Mode = "translate"
)

// Generator is the part of *manager.Manager the assistant drives.
type Generator interface {
	GenerateStreaming(ctx context.Context, prompt string, image []byte) *manager.Stream
	GenerateBlocking(ctx context.Context, prompt string) string
}

// Options wires the assistant's collaborators. Only Generator is required.
type Options struct {
	Generator Generator
	Speaker   speech.Speaker
	Listener  *speech.Listener
	Capturer  vision.Capturer
	OCR       vision.OCR
	Locale    locale.Locale
	// TranslateMode routes voice commands to Translate instead of HandleText.
	TranslateMode bool
	Logger        *zerolog.Logger
}

// Result is the outcome of one flow.
type Result struct {
	Mode   Mode
	Answer string
	Final  manager.Event
}

// OK reports whether the generation completed normally.
func (r Result) OK() bool { return r.Final.Kind == manager.KindDone }

// Assistant runs the flows. Methods may be called from any goroutine; the
// manager serializes generations.
type Assistant struct {
	gen      Generator
	speaker  speech.Speaker
	listener *speech.Listener
	capturer vision.Capturer
	ocr      vision.OCR
	locale   locale.Locale
	xlate    bool
	log      zerolog.Logger
}

// New returns an Assistant. A nil Speaker discards speech.
func New(opts Options) (*Assistant, error) {
	if opts.Generator == nil {
		return nil, fmt.Errorf("assistant: %w: generator", ErrNotConfigured)
	}
	a := &Assistant{
		gen:      opts.Generator,
		speaker:  opts.Speaker,
		listener: opts.Listener,
		capturer: opts.Capturer,
		ocr:      opts.OCR,
		locale:   opts.Locale.Normalize(),
		xlate:    opts.TranslateMode,
		log:      zerolog.Nop(),
	}
	if a.speaker == nil {
		a.speaker = speech.Discard{}
	}
	if opts.Logger != nil {
		a.log = opts.Logger.With().Str("component", "assistant").Logger()
	}
	return a, nil
}

// HandleText routes a typed prompt: greetings go straight to Answer,
// everything else asks the model whether the camera is needed.
func (a *Assistant) HandleText(ctx context.Context, prompt string) (Result, error) {
	prompt = capRunes(strings.TrimSpace(prompt), MaxPromptRunes)
	if greeting.MatchString(strings.ToLower(prompt)) {
		a.log.Debug().Str("event", "route").Str("mode", string(ModeText)).Msg("greeting; skipping vision decision")
		return a.Answer(ctx, prompt)
	}
	if a.capturer != nil && a.NeedsVision(ctx, prompt) {
		return a.Describe(ctx, prompt)
	}
	return a.Answer(ctx, prompt)
}

// NeedsVision asks the model with a few-shot yes/no prompt. Anything but a
// leading "yes" (including busy and error sentinels) means no.
func (a *Assistant) NeedsVision(ctx context.Context, prompt string) bool {
	raw := a.gen.GenerateBlocking(ctx, fmt.Sprintf(decisionTemplate, prompt))
	fields := strings.Fields(strings.ToLower(speech.StripLabel(strings.TrimSpace(raw))))
	yes := len(fields) > 0 && strings.Trim(fields[0], ".,!\"'") == "yes"
	a.log.Debug().Str("event", "vision_decision").Bool("vision", yes).Str("raw", raw).Msg("vision decided")
	return yes
}

// Answer streams a text answer and speaks each sentence as soon as it is
// complete, then the remaining tail.
func (a *Assistant) Answer(ctx context.Context, prompt string) (Result, error) {
	s := a.gen.GenerateStreaming(ctx, prompt, nil)
	var chunker speech.SentenceChunker
	var all strings.Builder
	final, err := a.consume(ctx, s, func(tok string) error {
		all.WriteString(tok)
		for _, sent := range chunker.Push(tok) {
			if err := a.speak(ctx, sent); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{Mode: ModeText}, err
	}
	res := Result{Mode: ModeText, Final: final}
	if !res.OK() {
		return res, a.speak(ctx, final.Text)
	}
	all.WriteString(final.Text)
	for _, sent := range chunker.Push(final.Text) {
		if err := a.speak(ctx, sent); err != nil {
			return res, err
		}
	}
	res.Answer = speech.StripLabel(strings.TrimSpace(all.String()))
	return res, a.speak(ctx, chunker.Flush())
}

// Describe captures a frame and speaks the model's description of it.
func (a *Assistant) Describe(ctx context.Context, prompt string) (Result, error) {
	if a.capturer == nil {
		return Result{Mode: ModeVision}, fmt.Errorf("assistant: %w: camera", ErrNotConfigured)
	}
	img, err := a.capturer.Capture(ctx)
	if err != nil {
		return Result{Mode: ModeVision}, fmt.Errorf("assistant: capture: %w", err)
	}
	return a.DescribeImage(ctx, prompt, img)
}

// DescribeImage is Describe for a frame the caller already has.
func (a *Assistant) DescribeImage(ctx context.Context, prompt string, img []byte) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultScenePrompt
	}
	text, final, err := a.gen.GenerateStreaming(ctx, prompt, img).Collect(ctx)
	if err != nil {
		return Result{Mode: ModeVision}, err
	}
	res := Result{Mode: ModeVision, Final: final}
	if !res.OK() {
		return res, a.speak(ctx, final.Text)
	}
	res.Answer = speech.StripLabel(strings.TrimSpace(text))
	return res, a.speak(ctx, res.Answer)
}

// Translate asks the model to translate text into the assistant's locale and
// speaks the result in chunks of TranslateChunkWords words.
func (a *Assistant) Translate(ctx context.Context, text string) (Result, error) {
	prompt := a.locale.TranslateInstruction() + "\n\"" + text + "\""
	s := a.gen.GenerateStreaming(ctx, prompt, nil)
	chunker := speech.WordChunker{N: TranslateChunkWords}
	var all strings.Builder
	final, err := a.consume(ctx, s, func(tok string) error {
		all.WriteString(tok)
		if chunk, ok := chunker.Push(tok); ok {
			return a.speak(ctx, chunk)
		}
		return nil
	})
	if err != nil {
		return Result{Mode: ModeTranslate}, err
	}
	res := Result{Mode: ModeTranslate, Final: final}
	if !res.OK() {
		return res, a.speak(ctx, final.Text)
	}
	all.WriteString(final.Text)
	if chunk, ok := chunker.Push(final.Text); ok {
		if err := a.speak(ctx, chunk); err != nil {
			return res, err
		}
	}
	res.Answer = speech.StripLabel(strings.TrimSpace(all.String()))
	return res, a.speak(ctx, chunker.Flush())
}

// ReadAndTranslate reads text from the camera and translates it.
func (a *Assistant) ReadAndTranslate(ctx context.Context) (Result, error) {
	if a.capturer == nil || a.ocr == nil {
		return Result{Mode: ModeTranslate}, fmt.Errorf("assistant: %w: camera or ocr", ErrNotConfigured)
	}
	img, err := a.capturer.Capture(ctx)
	if err != nil {
		return Result{Mode: ModeTranslate}, fmt.Errorf("assistant: capture: %w", err)
	}
	text, err := a.ocr.RecognizeText(ctx, img, string(a.locale))
	if err != nil {
		return Result{Mode: ModeTranslate}, fmt.Errorf("assistant: ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return Result{Mode: ModeTranslate}, ErrNoTextDetected
	}
	a.log.Debug().Str("event", "ocr").Int("chars", len(text)).Msg("text detected")
	return a.Translate(ctx, text)
}

// HandleVoice listens for one command and runs it.
func (a *Assistant) HandleVoice(ctx context.Context) (Result, error) {
	if a.listener == nil {
		return Result{}, fmt.Errorf("assistant: %w: recognizer", ErrNotConfigured)
	}
	cmd, err := a.listener.Listen(ctx, a.locale.SpeechTag())
	if err != nil {
		return Result{}, fmt.Errorf("assistant: listen: %w", err)
	}
	a.log.Info().Str("event", "voice_command").Int("chars", len(cmd)).Bool("translate", a.xlate).Msg("voice command")
	if a.xlate {
		return a.Translate(ctx, cmd)
	}
	return a.HandleText(ctx, cmd)
}

// consume forwards non-final token text to onToken and returns the final
// event. If ctx ends first the request is cancelled.
func (a *Assistant) consume(ctx context.Context, s *manager.Stream, onToken func(string) error) (manager.Event, error) {
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return manager.Event{Final: true, Kind: manager.KindCancelled}, nil
			}
			if ev.Final {
				return ev, nil
			}
			if err := onToken(ev.Text); err != nil {
				s.Cancel()
				s.Abandon()
				return manager.Event{}, err
			}
		case <-ctx.Done():
			s.Cancel()
			s.Abandon()
			return manager.Event{}, ctx.Err()
		}
	}
}

func (a *Assistant) speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := a.speaker.Speak(ctx, text); err != nil {
		a.log.Warn().Str("event", "tts_failed").Err(err).Msg("speak failed")
		return fmt.Errorf("assistant: speak: %w", err)
	}
	return nil
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
