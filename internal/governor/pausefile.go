package governor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// PauseFile pauses while PausePath exists and stops once StopPath exists.
// Either path may be empty.
type PauseFile struct {
	PausePath string
	StopPath  string
	Poll      time.Duration
}

func (p *PauseFile) Check(context.Context) (Signal, error) {
	if ok, err := exists(p.StopPath); err != nil {
		return SignalContinue, err
	} else if ok {
		return SignalStop, nil
	}
	if ok, err := exists(p.PausePath); err != nil {
		return SignalContinue, err
	} else if ok {
		return PauseFor(p.Poll), nil
	}
	return SignalContinue, nil
}

func exists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("governor: stat %s: %w", path, err)
	}
}
