package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"
)

// WriteLog encodes readings as JSONL.
func WriteLog(w io.Writer, readings []Reading) error {
	enc := json.NewEncoder(w)
	for _, r := range readings {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// ReplayLog appends readings from a JSONL stream to store. A speed >0
// reproduces the recorded spacing divided by speed; otherwise no delay is
// inserted. It returns the number of readings replayed.
func ReplayLog(ctx context.Context, r io.Reader, store Appender, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row Reading
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if !prev.IsZero() && speed > 0 {
			diff := row.Timestamp.Sub(prev)
			if speed != 1 {
				diff = time.Duration(float64(diff) / speed)
			}
			if diff > 0 {
				select {
				case <-ctx.Done():
					return n, ctx.Err()
				case <-time.After(diff):
				}
			}
		}
		if err := store.Append(ctx, row); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its readings.
func ReplayLogFile(ctx context.Context, path string, store Appender, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayLog(ctx, f, store, speed)
}
