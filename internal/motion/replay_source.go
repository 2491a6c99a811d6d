package motion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type replaySource struct {
	samples []Sample
	pos     int
}

// NewReplaySource returns a Source that yields the given samples in order
// and then io.EOF. It never blocks.
func NewReplaySource(samples []Sample) Source {
	return &replaySource{samples: samples}
}

func (r *replaySource) Next(ctx context.Context) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	if r.pos >= len(r.samples) {
		return Sample{}, io.EOF
	}
	s := r.samples[r.pos]
	r.pos++
	return s, nil
}

// LoadSamples reads a recording of JSON samples, one value after another
// (JSON lines or a plain concatenation), as published on the samples topic.
func LoadSamples(r io.Reader) ([]Sample, error) {
	dec := json.NewDecoder(r)
	var out []Sample
	for {
		var s Sample
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("replay: sample %d: %w", len(out)+1, err)
		}
		if s.Time.IsZero() {
			return nil, fmt.Errorf("replay: sample %d has no time", len(out)+1)
		}
		out = append(out, s)
	}
}
