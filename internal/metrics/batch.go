// Package metrics emits batch pass metrics to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"autopost/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// BatchResult is the subset of a batch summary that is measured.
type BatchResult struct {
	Processed int
	Paused    int
	Skipped   int
	Errors    int
	Duration  time.Duration
}

// BatchRecorder publishes one datum per outcome count, dimensioned by task,
// in a single PutMetricData call.
//
// Metrics emitted:
//   - BatchProcessed, BatchPaused, BatchSkipped, BatchErrors (Count)
//   - BatchDuration (Milliseconds)
type BatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewBatchRecorder creates a BatchRecorder under types.MetricNamespace.
func NewBatchRecorder(client CloudWatchClient, logger *slog.Logger) *BatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRecorder{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// RecordBatch emits the metrics for one pass of task. Failures are logged;
// metrics never fail a pass.
func (r *BatchRecorder) RecordBatch(ctx context.Context, task string, res BatchResult) {
	dims := []cwtypes.Dimension{{Name: aws.String(types.DimTask), Value: aws.String(task)}}
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		}
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			count(types.MetricBatchProcessed, res.Processed),
			count(types.MetricBatchPaused, res.Paused),
			count(types.MetricBatchSkipped, res.Skipped),
			count(types.MetricBatchErrors, res.Errors),
			{
				MetricName: aws.String(types.MetricBatchDuration),
				Value:      aws.Float64(float64(res.Duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims,
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record batch metrics",
			"task", task,
			"error", err,
		)
	}
}
