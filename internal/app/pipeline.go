package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

// run is the frame loop. Each tick it reads a frame, lets the motion gate
// decide whether it is worth detecting on, runs the detector and hands the
// result to ProcessHands. The gate also picks the capture rate: the camera
// runs at its configured rate while something moves and drops to the idle
// rate after a stretch of still frames.
func (a *App) run(ctx context.Context, done chan struct{}) {
	gate := capture.NewMotionGate(a.cfg.Motion)
	defer gate.Close()

	activeFPS := a.cfg.Camera.FPS()
	fps := activeFPS

	ticker := time.NewTicker(frameInterval(fps))
	defer ticker.Stop()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			a.finish(done, nil)
			return
		case <-ticker.C:
		}

		if !a.Enabled() {
			continue
		}

		frame, err := a.cfg.Camera.ReadFrame()
		if err != nil {
			failures++
			a.count(func(s *Stats) { s.Failures++ })
			if failures >= a.cfg.MaxCaptureFailures {
				a.log.Errorf("Capture failed %d times in a row, stopping: %v", failures, err)
				a.finish(done, fmt.Errorf("%w: %d consecutive failures: %w", ErrCaptureFailed, failures, err))
				return
			}
			if failures == 1 {
				a.log.Warnf("Error reading frame: %v", err)
			}
			continue
		}
		failures = 0

		process, want := gate.Observe(frame, activeFPS)
		a.setIdle(gate.Idle())
		if process {
			a.processFrame(ctx, frame)
		} else {
			a.count(func(s *Stats) { s.Skipped++ })
		}
		frame.Close()

		if want != fps {
			fps = want
			a.cfg.Camera.SetFPS(fps)
			ticker.Reset(frameInterval(fps))
			if gate.Idle() {
				a.log.Infof("No motion, idling at %d FPS", fps)
			} else {
				a.log.Infof("Motion detected, back to %d FPS", fps)
			}
		}
	}
}

// processFrame detects hands on one frame and feeds them to the tracker.
// Detector and classifier errors skip the frame.
func (a *App) processFrame(ctx context.Context, frame *gocv.Mat) {
	a.count(func(s *Stats) { s.Frames++ })

	if a.cfg.KeepFrames {
		if jpeg, err := capture.EncodeJPEG(frame); err == nil {
			a.keepFrame(jpeg)
		}
	}

	hands, err := a.cfg.Detector.Detect(frame)
	if err != nil {
		a.log.Warnf("Error detecting hands: %v", err)
		return
	}

	if _, err := a.ProcessHands(ctx, hands); err != nil {
		var malformed *detector.MalformedInputError
		if errors.As(err, &malformed) {
			a.log.Warnf("Skipping frame: %v", err)
			return
		}
		a.log.Errorf("Error classifying frame: %v", err)
	}
}
