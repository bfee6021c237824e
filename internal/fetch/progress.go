package fetch

import (
	"io"
	"time"
)

// ProgressFunc receives the completed fraction of an operation in [0,1].
// Emissions are throttled and monotonically non-decreasing; when the total
// size is unknown no fractions are reported at all.
type ProgressFunc func(fraction float64)

// progressReader counts bytes off the wrapped reader and reports throttled
// progress against a known total.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    ProgressFunc
	every time.Duration
	last  time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pr.fn != nil && pr.total > 0 && time.Since(pr.last) >= pr.every {
		pr.fn(float64(pr.read) / float64(pr.total))
		pr.last = time.Now()
	}
	return n, err
}
