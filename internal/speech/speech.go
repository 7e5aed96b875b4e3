// Package speech holds the speech-to-text and text-to-speech boundaries used
// by the assistant, plus the helpers that split streamed answers into
// speakable chunks.
package speech

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"sightspeak/internal/locale"
)

var (
	// ErrLanguageNotSupported is returned by a Recognizer that cannot handle
	// the requested locale tag.
	ErrLanguageNotSupported = errors.New("speech: language not supported")
	// ErrDeadConnection is returned by a Speaker whose voice engine went away.
	ErrDeadConnection = errors.New("speech: voice engine connection lost")
	// ErrNoSpeech is returned when recognition produced no text.
	ErrNoSpeech = errors.New("speech: nothing recognized")
)

// Recognizer turns one utterance into text.
type Recognizer interface {
	Recognize(ctx context.Context, localeTag string) (string, error)
}

// Speaker says text aloud and returns when the utterance has been handed off.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener wraps a Recognizer with the locale fallback: a rejected tag is
// retried exactly once with locale.DefaultSpeechTag.
type Listener struct {
	Recognizer Recognizer
	Log        zerolog.Logger
}

// Listen recognizes one utterance in the given tag.
func (l Listener) Listen(ctx context.Context, tag string) (string, error) {
	if tag == "" {
		tag = locale.DefaultSpeechTag
	}
	text, err := l.Recognizer.Recognize(ctx, tag)
	if errors.Is(err, ErrLanguageNotSupported) && tag != locale.DefaultSpeechTag {
		l.Log.Warn().Str("event", "speech_fallback").Str("tag", tag).Str("fallback", locale.DefaultSpeechTag).Msg("language not supported; retrying with default")
		text, err = l.Recognizer.Recognize(ctx, locale.DefaultSpeechTag)
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

// SpeakerFactory creates a fresh voice engine.
type SpeakerFactory func() (Speaker, error)

// ResilientSpeaker recreates its Speaker through a factory when the current
// one reports ErrDeadConnection and says the same text once more.
type ResilientSpeaker struct {
	factory SpeakerFactory
	log     zerolog.Logger

	mu  sync.Mutex
	cur Speaker
}

// NewResilientSpeaker creates the first Speaker eagerly so configuration
// errors surface at startup.
func NewResilientSpeaker(factory SpeakerFactory, log zerolog.Logger) (*ResilientSpeaker, error) {
	sp, err := factory()
	if err != nil {
		return nil, err
	}
	return &ResilientSpeaker{factory: factory, log: log, cur: sp}, nil
}

// Speak serializes utterances; concurrent callers queue behind each other.
func (r *ResilientSpeaker) Speak(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		sp, err := r.factory()
		if err != nil {
			return err
		}
		r.cur = sp
	}
	err := r.cur.Speak(ctx, text)
	if !errors.Is(err, ErrDeadConnection) {
		return err
	}
	r.log.Warn().Str("event", "tts_reinit").Err(err).Msg("voice engine lost; reinitializing")
	closeQuietly(r.cur)
	r.cur = nil
	sp, ferr := r.factory()
	if ferr != nil {
		return errors.Join(err, ferr)
	}
	r.cur = sp
	return r.cur.Speak(ctx, text)
}

// Close releases the current voice engine when it is an io.Closer.
func (r *ResilientSpeaker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if c, ok := r.cur.(io.Closer); ok {
		err = c.Close()
	}
	r.cur = nil
	return err
}

func closeQuietly(s Speaker) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// Discard is a Speaker that drops everything; used when no TTS is configured.
type Discard struct{}

func (Discard) Speak(context.Context, string) error { return nil }
