package store

import (
	"bufio"
	"bytes"
	"io"
)

// lineSpan is the [start, end) byte range of one non-empty line, end
// including the trailing newline when present.
type lineSpan struct {
	start int64
	end   int64
}

// lineIndex records the byte offsets of every non-empty line in a log.
// RemoveLast uses it to truncate exactly one record.
type lineIndex struct {
	spans []lineSpan
}

func buildLineIndex(r io.Reader) (*lineIndex, error) {
	idx := &lineIndex{}
	br := bufio.NewReader(r)
	var pos int64
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if len(bytes.TrimSpace(line)) > 0 {
				idx.spans = append(idx.spans, lineSpan{start: pos, end: pos + int64(len(line))})
			}
			pos += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// last returns the span of the final non-empty line.
func (idx *lineIndex) last() (lineSpan, bool) {
	if len(idx.spans) == 0 {
		return lineSpan{}, false
	}
	return idx.spans[len(idx.spans)-1], true
}
