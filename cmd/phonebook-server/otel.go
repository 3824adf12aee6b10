package main

import (
	"context"
	"time"

	otelexport "github.com/MrEthical07/phonebook/metrics/export/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// startOTelReporter registers the engine counters on an OpenTelemetry meter
// and logs every non-zero counter series each interval. The returned func
// stops it.
func startOTelReporter(ctx context.Context, source otelexport.Source, interval time.Duration, logger *zap.Logger) (func(), error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exporter, err := otelexport.NewExporter(provider.Meter("phonebook"), source)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var rm metricdata.ResourceMetrics
				if err := reader.Collect(ctx, &rm); err != nil {
					logger.Warn("otel collect failed", zap.Error(err))
					continue
				}
				logSums(logger, rm)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		_ = exporter.Close()
		_ = provider.Shutdown(context.Background())
	}, nil
}

func logSums(logger *zap.Logger, rm metricdata.ResourceMetrics) {
	fields := make([]zap.Field, 0, 16)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Value == 0 {
					continue
				}
				key := m.Name
				if dp.Attributes.Len() > 0 {
					key += "{" + dp.Attributes.Encoded(attribute.DefaultEncoder()) + "}"
				}
				fields = append(fields, zap.Int64(key, dp.Value))
			}
		}
	}
	if len(fields) > 0 {
		logger.Info("metrics", fields...)
	}
}
