package extract

import (
	"bufio"
	"io"
	"strings"
)

// TextExtractor handles plain text files.
type TextExtractor struct{}

func (p *TextExtractor) Extract(r io.Reader, filename string) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var buf strings.Builder
	for scanner.Scan() {
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
