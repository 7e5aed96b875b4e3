package speech

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	tags    []string
	reject  map[string]bool
	text    string
	failErr error
}

func (f *fakeRecognizer) Recognize(_ context.Context, tag string) (string, error) {
	f.tags = append(f.tags, tag)
	if f.reject[tag] {
		return "", ErrLanguageNotSupported
	}
	if f.failErr != nil {
		return "", f.failErr
	}
	return f.text, nil
}

func TestListenFallsBackOnce(t *testing.T) {
	rec := &fakeRecognizer{reject: map[string]bool{"ko-KR": true}, text: "hello"}
	got, err := Listener{Recognizer: rec, Log: zerolog.Nop()}.Listen(context.Background(), "ko-KR")
	require.NoError(t, err)
	require.Equal(t, "hello", got)
	require.Equal(t, []string{"ko-KR", "en-US"}, rec.tags)
}

func TestListenNoSecondFallback(t *testing.T) {
	rec := &fakeRecognizer{reject: map[string]bool{"ko-KR": true, "en-US": true}}
	_, err := Listener{Recognizer: rec}.Listen(context.Background(), "ko-KR")
	require.ErrorIs(t, err, ErrLanguageNotSupported)
	require.Len(t, rec.tags, 2)

	rec = &fakeRecognizer{reject: map[string]bool{"en-US": true}}
	_, err = Listener{Recognizer: rec}.Listen(context.Background(), "")
	require.ErrorIs(t, err, ErrLanguageNotSupported)
	require.Equal(t, []string{"en-US"}, rec.tags)
}

func TestListenOtherErrorsAndEmpty(t *testing.T) {
	boom := errors.New("mic busy")
	_, err := Listener{Recognizer: &fakeRecognizer{failErr: boom}}.Listen(context.Background(), "de-DE")
	require.ErrorIs(t, err, boom)
	_, err = Listener{Recognizer: &fakeRecognizer{}}.Listen(context.Background(), "de-DE")
	require.ErrorIs(t, err, ErrNoSpeech)
}

type fakeSpeaker struct {
	said   []string
	dead   bool
	closed bool
}

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	if f.dead {
		return ErrDeadConnection
	}
	f.said = append(f.said, text)
	return nil
}

func (f *fakeSpeaker) Close() error { f.closed = true; return nil }

func TestResilientSpeakerReinitializes(t *testing.T) {
	first := &fakeSpeaker{dead: true}
	second := &fakeSpeaker{}
	made := []*fakeSpeaker{first, second}
	calls := 0
	rs, err := NewResilientSpeaker(func() (Speaker, error) {
		s := made[calls]
		calls++
		return s, nil
	}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, rs.Speak(context.Background(), "A red mug."))
	require.Equal(t, 2, calls)
	require.True(t, first.closed)
	require.Equal(t, []string{"A red mug."}, second.said)
	require.NoError(t, rs.Close())
	require.True(t, second.closed)
}

func TestResilientSpeakerRetriesOnlyOnce(t *testing.T) {
	rs, err := NewResilientSpeaker(func() (Speaker, error) { return &fakeSpeaker{dead: true}, nil }, zerolog.Nop())
	require.NoError(t, err)
	require.ErrorIs(t, rs.Speak(context.Background(), "x"), ErrDeadConnection)
}

func TestResilientSpeakerFactoryError(t *testing.T) {
	boom := errors.New("no voice")
	_, err := NewResilientSpeaker(func() (Speaker, error) { return nil, boom }, zerolog.Nop())
	require.ErrorIs(t, err, boom)
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("espeak-ng -v {voice}")
	require.NoError(t, err)
	require.Equal(t, "espeak-ng", c.Path)
	require.Equal(t, []string{"-v", "{voice}"}, c.Args)
	_, err = ParseCommand("   ")
	require.Error(t, err)
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestCommandSpeaker(t *testing.T) {
	requireShell(t)
	ctx := context.Background()
	ok := CommandSpeaker{Cmd: Command{Path: "sh", Args: []string{"-c", `test "$0" = "hello" && test "$1" = "de"`, "{text}", "{voice}"}}, Voice: "de"}
	require.NoError(t, ok.Speak(ctx, "hello"))
	require.NoError(t, ok.Speak(ctx, "  "))

	fail := CommandSpeaker{Cmd: Command{Path: "sh", Args: []string{"-c", "exit 1"}}}
	err := fail.Speak(ctx, "x")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDeadConnection)

	killed := CommandSpeaker{Cmd: Command{Path: "sh", Args: []string{"-c", "kill -KILL $$"}}}
	require.ErrorIs(t, killed.Speak(ctx, "x"), ErrDeadConnection)
}

func TestCommandRecognizer(t *testing.T) {
	requireShell(t)
	ctx := context.Background()
	r := CommandRecognizer{Cmd: Command{Path: "sh", Args: []string{"-c", `echo "  heard $0 "`, "{lang}"}}}
	got, err := r.Recognize(ctx, "fr-FR")
	require.NoError(t, err)
	require.Equal(t, "heard fr-FR", got)

	unsupported := CommandRecognizer{Cmd: Command{Path: "sh", Args: []string{"-c", "echo 'Unsupported language' >&2; exit 3"}}}
	_, err = unsupported.Recognize(ctx, "ko-KR")
	require.ErrorIs(t, err, ErrLanguageNotSupported)

	// the fallback works end to end with a command recognizer
	l := Listener{Recognizer: CommandRecognizer{Cmd: Command{Path: "sh", Args: []string{"-c",
		`if [ "$0" = "en-US" ]; then echo ok; else echo 'language not supported' >&2; exit 3; fi`, "{lang}"}}}}
	got, err = l.Listen(ctx, "ko-KR")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}
