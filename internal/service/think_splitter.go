package service

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkSplitter routes a leading <think>...</think> block of a streamed
// completion to reasoning. Tags may be split across chunks. Only a block
// at the very start (after whitespace) is treated as reasoning.
type thinkSplitter struct {
	buf    string
	inside bool
	done   bool
}

func (s *thinkSplitter) Feed(chunk string) (text, reasoning string) {
	s.buf += chunk
	var t, r strings.Builder

	for {
		if s.inside {
			if i := strings.Index(s.buf, thinkClose); i >= 0 {
				r.WriteString(s.buf[:i])
				s.buf = strings.TrimLeft(s.buf[i+len(thinkClose):], "\r\n")
				s.inside = false
				s.done = true
				continue
			}
			keep := partialSuffix(s.buf, thinkClose)
			r.WriteString(s.buf[:len(s.buf)-keep])
			s.buf = s.buf[len(s.buf)-keep:]
			return t.String(), r.String()
		}

		if s.done {
			t.WriteString(s.buf)
			s.buf = ""
			return t.String(), r.String()
		}

		trimmed := strings.TrimLeft(s.buf, " \t\r\n")
		switch {
		case trimmed == "":
			return t.String(), r.String()
		case strings.HasPrefix(trimmed, thinkOpen):
			s.buf = trimmed[len(thinkOpen):]
			s.inside = true
		case strings.HasPrefix(thinkOpen, trimmed):
			// could still become <think>
			return t.String(), r.String()
		default:
			s.done = true
		}
	}
}

// Flush releases anything held back. An unterminated block stays reasoning.
func (s *thinkSplitter) Flush() (text, reasoning string) {
	rest := s.buf
	s.buf = ""
	if s.inside {
		return "", rest
	}
	return rest, ""
}

// partialSuffix is the length of the longest proper prefix of tag that s ends with.
func partialSuffix(s, tag string) int {
	for k := len(tag) - 1; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}
