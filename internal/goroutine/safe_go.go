// Package goroutine запуск фоновых горутин, переживающих panic.
package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-portal/internal/logger"
)

// SafeGo запускает fn в горутине. Panic логируется со стеком и не роняет процесс.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic(nil)
		fn()
	}()
}

// SafeGoWithContext то же, что SafeGo, для долгоживущих циклов, которые слушают ctx.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic(ctx)
		fn(ctx)
	}()
}

func recoverPanic(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	entry := logger.Log.WithFields(logrus.Fields{
		"component": "goroutine",
		"panic":     r,
		"stack":     string(debug.Stack()),
	})
	if ctx != nil {
		entry = entry.WithField("ctx_done", ctx.Err() != nil)
	}
	entry.Error("Panic в фоновой горутине")
}
