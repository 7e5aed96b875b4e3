package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// Command is an external program with argument templates. Placeholders
// {text}, {voice} and {lang} are substituted per call.
type Command struct {
	Path string
	Args []string
}

// ParseCommand splits a whitespace separated command line. Quoting is not
// interpreted; use Command directly for arguments containing spaces.
func ParseCommand(line string) (Command, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return Command{}, errors.New("speech: empty command")
	}
	return Command{Path: f[0], Args: f[1:]}, nil
}

func (c Command) expand(vars map[string]string) (args []string, used map[string]bool) {
	used = map[string]bool{}
	for _, a := range c.Args {
		for k, v := range vars {
			ph := "{" + k + "}"
			if strings.Contains(a, ph) {
				a = strings.ReplaceAll(a, ph, v)
				used[k] = true
			}
		}
		args = append(args, a)
	}
	return args, used
}

// CommandSpeaker speaks by running a TTS program such as espeak-ng. The text
// is passed via {text} or appended as the last argument.
type CommandSpeaker struct {
	Cmd   Command
	Voice string
}

func (s CommandSpeaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	args, used := s.Cmd.expand(map[string]string{"text": text, "voice": s.Voice})
	if !used["text"] {
		args = append(args, text)
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Cmd.Path, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if killedBySignal(err) {
		return fmt.Errorf("%w: %v", ErrDeadConnection, err)
	}
	return fmt.Errorf("speech: %s: %w: %s", s.Cmd.Path, err, strings.TrimSpace(stderr.String()))
}

// CommandRecognizer runs a speech-to-text program (for example a whisper CLI
// wrapper recording from the microphone) and reads the transcript from its
// stdout. Output on stderr mentioning an unsupported language maps to
// ErrLanguageNotSupported.
type CommandRecognizer struct {
	Cmd Command
}

func (r CommandRecognizer) Recognize(ctx context.Context, tag string) (string, error) {
	args, _ := r.Cmd.expand(map[string]string{"lang": tag})
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Cmd.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.ToLower(stderr.String())
		if strings.Contains(msg, "unsupported language") || strings.Contains(msg, "language not supported") {
			return "", fmt.Errorf("%w: %s", ErrLanguageNotSupported, tag)
		}
		return "", fmt.Errorf("speech: %s: %w: %s", r.Cmd.Path, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func killedBySignal(err error) bool {
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		return false
	}
	ws, ok := ee.Sys().(syscall.WaitStatus)
	return ok && ws.Signaled()
}
