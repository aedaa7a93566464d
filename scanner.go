package appledesc

import (
	"bufio"
	"io"
	"strings"
)

// DefaultMaxLineSize bounds a single input line read from an io.Reader.
// ioreg dumps carry hex blobs far longer than bufio's 64 KiB default.
const DefaultMaxLineSize = 16 << 20

// Scanner is a forward-only line cursor that can give back the last line it
// returned. It reads from an io.Reader or from lines already in memory.
type Scanner struct {
	next    func() (string, bool)
	err     func() error
	lineNum int
	last    string
	unread  bool
}

// NewScanner creates a Scanner over r with DefaultMaxLineSize.
func NewScanner(r io.Reader) *Scanner {
	return newScannerSize(r, DefaultMaxLineSize)
}

func newScannerSize(r io.Reader, maxLine int) *Scanner {
	sc := bufio.NewScanner(r)
	if maxLine > bufio.MaxScanTokenSize {
		sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLine)
	}
	return &Scanner{
		next: func() (string, bool) {
			if !sc.Scan() {
				return "", false
			}
			return sc.Text(), true
		},
		err: sc.Err,
	}
}

// NewLineScanner creates a Scanner over lines held in memory.
func NewLineScanner(lines []string) *Scanner {
	i := 0
	return &Scanner{
		next: func() (string, bool) {
			if i >= len(lines) {
				return "", false
			}
			i++
			return lines[i-1], true
		},
		err: func() error { return nil },
	}
}

// NextLine advances the scanner and returns the current line number and text.
func (s *Scanner) NextLine() (int, string, bool) {
	if s.unread {
		s.unread = false
		return s.lineNum, s.last, true
	}
	line, ok := s.next()
	if !ok {
		return s.lineNum, "", false
	}
	s.lineNum++
	s.last = strings.TrimRight(line, "\r\n")
	return s.lineNum, s.last, true
}

// Unread makes the next NextLine return the current line again. Only one
// line can be given back.
func (s *Scanner) Unread() {
	if s.lineNum > 0 {
		s.unread = true
	}
}

// Peek returns the next line without consuming it.
func (s *Scanner) Peek() (int, string, bool) {
	n, line, ok := s.NextLine()
	if ok {
		s.Unread()
	}
	return n, line, ok
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error {
	return s.err()
}
