// Package telemetry はOpenTelemetryのトレース・メトリクス・ログ出力を初期化します。
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"umbra/internal/config"
)

// Setup はserviceNameでトレースプロバイダを登録します。
// MetricsEndpointがあればMeterProviderを、LogsEndpointがあればLoggerProviderも登録します。
//
// 無効化されているかエンドポイントが空のときは何も登録せず、no-opのshutdownを返します。
// 返されたshutdownは未送信のspan・計測値・ログを吐き出すので、呼び出し側でdeferしてください。
func Setup(ctx context.Context, serviceName string, cfg config.Telemetry) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled || cfg.Endpoint == "" {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return noop, err
	}

	var shutdowns []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range slices.Backward(shutdowns) {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return noop, err
	}
	shutdowns = append(shutdowns, tp.Shutdown)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.MetricsEndpoint != "" {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			return noop, errors.Join(err, shutdown(ctx))
		}
		shutdowns = append(shutdowns, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	if cfg.LogsEndpoint != "" {
		lp, err := newLoggerProvider(ctx, cfg, res)
		if err != nil {
			return noop, errors.Join(err, shutdown(ctx))
		}
		shutdowns = append(shutdowns, lp.Shutdown)
		global.SetLoggerProvider(lp)
	}

	return shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg config.Telemetry, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

func newMeterProvider(ctx context.Context, cfg config.Telemetry, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
	)
	if err != nil {
		return nil, err
	}
	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricsInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricsInterval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	), nil
}

func newLoggerProvider(ctx context.Context, cfg config.Telemetry, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpointURL(cfg.LogsEndpoint),
	)
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}

// LogHandler はlocalに加えてOTLPへもログを流すハンドラを返します。
// ログ出力が設定されていなければlocalをそのまま返します。
func LogHandler(local slog.Handler, serviceName string, cfg config.Telemetry) slog.Handler {
	if !cfg.Enabled || cfg.Endpoint == "" || cfg.LogsEndpoint == "" {
		return local
	}
	return Fanout(local, otelslog.NewHandler(serviceName))
}
