package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/relabs-tech/gait_computer/internal/motion"
)

// Run drives p from src until the source ends or ctx is cancelled,
// publishing every snapshot and step on hub. It is the only writer of p
// and closes hub on return. A source that ends with io.EOF returns nil.
func Run(ctx context.Context, p *Processor, src motion.Source, hub *Hub) error {
	defer hub.Close()

	for {
		s, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream: read sample: %w", err)
		}

		snap, step := p.Process(s)
		if step != nil {
			if err := hub.PublishStep(ctx, *step); err != nil {
				return err
			}
		}
		hub.PublishSnapshot(snap)
	}
}
