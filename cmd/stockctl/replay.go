package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"

	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/transport"
)

// replayResult is one output line of the replay command.
type replayResult struct {
	Line     int               `json:"line"`
	Status   int               `json:"status"`
	Response *message.Response `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func replayCommand(c *cli.Context) error {
	workers := c.Int("workers")
	if workers <= 0 {
		return fmt.Errorf("workers must be greater than 0")
	}

	in, closeIn, err := openInput(c.String("file"))
	if err != nil {
		return err
	}
	defer closeIn()

	lines, reqs, err := readRequests(in)
	if err != nil {
		return err
	}

	h, release, err := handler(c)
	if err != nil {
		return err
	}
	defer release()

	results, err := replay(c.Context, h, lines, reqs, workers)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	counts := map[int]int{}
	for _, r := range results {
		counts[r.Status]++
		if err := enc.Encode(r); err != nil {
			return err
		}
	}

	statuses := make([]int, 0, len(counts))
	for s := range counts {
		statuses = append(statuses, s)
	}
	sort.Ints(statuses)
	fmt.Fprintf(c.App.ErrWriter, "replayed %d requests:", len(results))
	for _, s := range statuses {
		fmt.Fprintf(c.App.ErrWriter, " %d=%d", s, counts[s])
	}
	fmt.Fprintln(c.App.ErrWriter)
	return nil
}

// readRequests parses one request per non-blank line and returns the line
// numbers alongside.
func readRequests(r io.Reader) ([]int, []*message.Request, error) {
	var (
		lines []int
		reqs  []*message.Request
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var req message.Request
		if err := json.Unmarshal(line, &req); err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, n)
		reqs = append(reqs, &req)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading requests: %w", err)
	}
	return lines, reqs, nil
}

// replay resolves reqs on a bounded worker pool. Results keep input order.
func replay(ctx context.Context, h transport.Handler, lines []int, reqs []*message.Request, workers int) ([]replayResult, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]replayResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			resp, err := h.Resolve(ctx, req)
			r := replayResult{Line: lines[i], Status: 200, Response: resp}
			if err != nil {
				r.Status = apperr.HTTPStatus(apperr.KindOf(err))
				r.Error = err.Error()
			}
			results[i] = r
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting line %d: %w", lines[i], err)
		}
	}
	wg.Wait()
	return results, nil
}
