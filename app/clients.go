package app

import (
	"golang.org/x/time/rate"

	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/config"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/http"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/logger"
	"github.com/VovaNikitchuk94/microsoft-authentication-library-common-for-android/observability"
)

// newClientBuilder translates the http section into a client builder.
// The rate limiter is shared by every client built from it.
func newClientBuilder(cfg *config.Config, log logger.Logger, obs observability.Provider, opts *Options) *http.Builder {
	hc := cfg.HTTP

	b := http.NewBuilder(log).
		WithRetryDelay(hc.Retry.Delay).
		WithTraceIDHeader(hc.Trace.Header).
		WithW3CTrace(hc.Trace.W3C).
		WithPayloadLogging(hc.Payload.Log, hc.Payload.MaxBytes).
		WithTelemetry(obs.TracerProvider(), obs.MeterProvider())

	if opts.ConnectionFactory != nil {
		b = b.WithConnectionFactory(opts.ConnectionFactory)
	} else {
		b = b.WithConnectTimeout(hc.Timeout.Connect).WithReadTimeout(hc.Timeout.Read)
	}

	for k, v := range hc.Headers {
		b = b.WithDefaultHeader(k, v)
	}
	for _, interceptor := range opts.RequestInterceptors {
		b = b.WithRequestInterceptor(interceptor)
	}
	for _, interceptor := range opts.ResponseInterceptors {
		b = b.WithResponseInterceptor(interceptor)
	}
	if hc.Auth.Enabled() {
		b = b.WithBasicAuth(hc.Auth.Username, hc.Auth.Password)
	}

	if hc.RateLimit.Enabled() {
		b = b.WithRateLimiter(rate.NewLimiter(rate.Limit(hc.RateLimit.RPS), hc.RateLimit.Burst))
	}
	return b
}
