package main

import (
	"context"

	"github.com/spf13/viper"

	"github.com/jingkaihe/skillfetch/pkg/telemetry"
	"github.com/jingkaihe/skillfetch/pkg/version"
)

// initTracing initializes the OpenTelemetry tracing system from the
// tracing.* configuration keys.
func initTracing(ctx context.Context) (func(context.Context) error, error) {
	config := telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "skillfetch",
		ServiceVersion: version.Get().Version,
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	}

	return telemetry.InitTracer(ctx, config)
}
