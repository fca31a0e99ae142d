// Package httpclient builds the retrying HTTP client shared by every
// third-party integration.
package httpclient

import (
	"time"

	"github.com/finmate/finmate/pkg/metrics"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Options tunes a client. Zero values keep the library defaults.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// New returns a retrying client that logs through logger. After the last
// attempt the final response is handed back instead of an error, so callers
// can inspect upstream statuses themselves.
func New(logger *zap.Logger, opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = &leveledLogger{logger: logger.Sugar()}
	c.RetryMax = opts.RetryMax
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// Observe records the latency of one upstream call
func Observe(upstream string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.UpstreamLatency.WithLabelValues(upstream, outcome).Observe(time.Since(start).Seconds())
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger
type leveledLogger struct {
	logger *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Infow(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}
