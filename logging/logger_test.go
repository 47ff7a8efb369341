package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDefaultLogger(t *testing.T) {
	repeat := 5
	var wait sync.WaitGroup
	loggerChan := make(chan *zap.Logger, repeat)

	for i := 0; i < repeat; i++ {
		wait.Add(1)
		go func() {
			defer wait.Done()
			loggerChan <- DefaultLogger()
		}()
	}
	wait.Wait()

	l := DefaultLogger()
	for i := 0; i < repeat; i++ {
		assert.Same(t, l, <-loggerChan)
	}
}

func TestFromContext(t *testing.T) {
	assert.Same(t, DefaultLogger(), FromContext(context.Background()))

	custom := zap.NewNop()
	ctx := WithLogger(context.Background(), custom)
	assert.Same(t, custom, FromContext(ctx))
}
