package speech

import (
	"regexp"
	"strings"
)

var (
	answerLabel = regexp.MustCompile(`(?i)^\s*(?:A:|Answer:)\s*`)
	sentenceEnd = regexp.MustCompile(`(?s)^(.*?[.!?])\s+`)
)

// StripLabel removes a leading "A:" or "Answer:" the model may echo.
func StripLabel(s string) string {
	return answerLabel.ReplaceAllString(s, "")
}

// SentenceChunker accumulates streamed tokens and hands back each sentence
// once its terminating punctuation is followed by whitespace.
type SentenceChunker struct {
	buf     strings.Builder
	started bool
}

// Push appends a token and returns the sentences completed by it.
func (c *SentenceChunker) Push(tok string) []string {
	c.buf.WriteString(tok)
	s := c.buf.String()
	if !c.started {
		// wait until the label, if any, can be recognized
		if len(strings.TrimSpace(s)) < len("Answer:") && !sentenceEnd.MatchString(s) {
			return nil
		}
		s = StripLabel(s)
		c.started = true
	}
	var out []string
	for {
		m := sentenceEnd.FindStringSubmatchIndex(s)
		if m == nil {
			break
		}
		if sent := strings.TrimSpace(s[m[2]:m[3]]); sent != "" {
			out = append(out, sent)
		}
		s = s[m[1]:]
	}
	c.buf.Reset()
	c.buf.WriteString(s)
	return out
}

// Flush returns whatever is left, trimmed, and resets the chunker.
func (c *SentenceChunker) Flush() string {
	s := c.buf.String()
	if !c.started {
		s = StripLabel(s)
	}
	c.buf.Reset()
	c.started = false
	return strings.TrimSpace(s)
}

// WordChunker emits the buffer once it holds at least N words.
type WordChunker struct {
	N   int
	buf strings.Builder
}

// Push appends a token and returns a chunk when the word threshold is met.
func (c *WordChunker) Push(tok string) (string, bool) {
	c.buf.WriteString(tok)
	n := c.N
	if n <= 0 {
		n = 20
	}
	s := c.buf.String()
	if len(strings.Fields(s)) < n || strings.TrimSpace(s) == "" {
		return "", false
	}
	c.buf.Reset()
	return strings.TrimSpace(s), true
}

// Flush returns the remaining words, trimmed.
func (c *WordChunker) Flush() string {
	s := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return s
}
