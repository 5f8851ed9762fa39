package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Outcome is the result of draining a response stream. Terminal is nil when
// the stream ended without a terminal chunk.
type Outcome struct {
	Terminal *Chunk
	Chunks   int
}

// Consume asks question over datafileID and reads the stream until the
// backend ends it. It does not stop at the first terminal chunk: later ones
// replace earlier ones. The stream is closed on every return path. Errors
// are passed through Classify.
func Consume(ctx context.Context, client Client, datafileID, question string) (*Outcome, error) {
	stream, err := client.Response(ctx, datafileID, question)
	if err != nil {
		return nil, Classify(err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			slog.Debug("closing response stream", "error", cerr)
		}
	}()

	out := &Outcome{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, Classify(err)
		}

		out.Chunks++
		if chunk.IsTerminal() {
			if out.Terminal != nil {
				slog.Debug("terminal chunk replaced by a later one", "chunk", out.Chunks)
			}
			out.Terminal = chunk
		}
	}
}
