package safego

import (
	"time"

	"go.uber.org/zap"
)

// Go launches fn on a goroutine that logs panics instead of crashing the
// process. name identifies the goroutine in the log.
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer logPanic(logger, name)
		fn()
	}()
}

// GoRestart launches fn like Go, but relaunches it after a panic. The
// daemon's long-lived pumps use this so one bad payload cannot silence a
// stream for the rest of the session. fn returning normally ends the
// goroutine for good.
func GoRestart(logger *zap.Logger, name string, fn func()) {
	go func() {
		for {
			done := func() (done bool) {
				defer func() {
					if r := recover(); r != nil {
						logPanicValue(logger, name, r)
					}
				}()
				fn()
				return true
			}()
			if done {
				return
			}
			time.Sleep(time.Second)
			logger.Info("Restarting goroutine after panic", zap.String("goroutine", name))
		}
	}()
}

func logPanic(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		logPanicValue(logger, name, r)
	}
}

func logPanicValue(logger *zap.Logger, name string, r any) {
	logger.Error("Goroutine panicked",
		zap.String("goroutine", name),
		zap.Any("panic", r),
		zap.Stack("stack"),
	)
}
