// Package capture turns live device tracks into timed chunks for the
// voice and video sockets.
package capture

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/javaboys/hunty/interview/domain/repositories"
)

var (
	// ErrDevice wraps permission and availability failures when opening a device.
	ErrDevice = errors.New("capture device unavailable")

	// ErrTrackEnded is reported when the device track ends on its own.
	ErrTrackEnded = errors.New("capture track ended")
)

// TickerFunc returns a tick channel and its stop function
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// pump reads track into a buffer and hands the buffer to flush on every
// tick. It returns when ctx is done, the track ends or flush fails, along
// with whatever was captured since the last flush.
func pump(ctx context.Context, track repositories.MediaTrack, ticks <-chan time.Time, flush func([]byte) error) ([]byte, error) {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	data := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			b, err := track.Read(readCtx)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case data <- b:
			case <-readCtx.Done():
				return
			}
		}
	}()

	var pending []byte
	drain := func() {
		for {
			select {
			case b := <-data:
				pending = append(pending, b...)
			default:
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			drain()
			return pending, nil

		case b := <-data:
			pending = append(pending, b...)

		case err := <-readErr:
			drain()
			if ctx.Err() != nil {
				return pending, nil
			}
			if errors.Is(err, io.EOF) {
				return pending, ErrTrackEnded
			}
			return pending, err

		case <-ticks:
			drain()
			if len(pending) == 0 {
				continue
			}
			chunk := pending
			pending = nil
			if err := flush(chunk); err != nil {
				return nil, err
			}
		}
	}
}
