package media

import "time"

// DefaultVideoIdleTimeout is how long a remote video track may stay silent
// before it is reported as disabled.
const DefaultVideoIdleTimeout = 2 * time.Second

// watchVideo reads a remote video track until read fails. The track is
// reported enabled when it starts and whenever packets resume, and disabled
// after idle without packets or when the track ends.
func watchVideo(read func() error, idle time.Duration, report func(enabled bool)) {
	packets := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for read() == nil {
			select {
			case packets <- struct{}{}:
			default:
			}
		}
	}()

	enabled := true
	report(true)
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-done:
			if enabled {
				report(false)
			}
			return
		case <-packets:
			if !enabled {
				enabled = true
				report(true)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(idle)
		case <-timer.C:
			if enabled {
				enabled = false
				report(false)
			}
		}
	}
}
