package polar

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"polarnet/nn"
)

type errInvalidLine struct {
	lineNum int
	splits  int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected 1 or 3 values, got %d", e.lineNum, e.splits)
}

type lineSource struct {
	scanner *bufio.Scanner
	lineNum int
}

// LineSource reads training angles from r, one comma separated line per sample:
//
//	radians
//	radians,x,y
//
// The first form trains toward the point on the unit circle, the second toward the
// given point. Blank lines and lines starting with # are skipped.
func LineSource(r io.Reader) nn.SampleSource {
	return &lineSource{scanner: bufio.NewScanner(r)}
}

func (s *lineSource) Next() (nn.Sample, bool, error) {
	for s.scanner.Scan() {
		s.lineNum++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		splits := strings.Split(text, ",")
		if len(splits) != 1 && len(splits) != 3 {
			return nn.Sample{}, false, errInvalidLine{lineNum: s.lineNum, splits: len(splits)}
		}
		values := make([]float64, len(splits))
		for i, split := range splits {
			num, err := strconv.ParseFloat(strings.TrimSpace(split), 64)
			if err != nil {
				return nn.Sample{}, false, errors.Wrapf(err, "at line %d", s.lineNum)
			}
			values[i] = num
		}

		input := ToInput(values[0])
		if len(values) == 1 {
			return SampleFor(input), true, nil
		}
		return nn.Sample{Input: []float64{input}, Desired: values[1:]}, true, nil
	}
	return nn.Sample{}, false, s.scanner.Err()
}

// ReadLines collects every sample of a LineSource.
func ReadLines(r io.Reader) ([]nn.Sample, error) {
	src := LineSource(r)
	var samples []nn.Sample
	for {
		s, ok, err := src.Next()
		if err != nil {
			return samples, err
		}
		if !ok {
			return samples, nil
		}
		samples = append(samples, s)
	}
}
