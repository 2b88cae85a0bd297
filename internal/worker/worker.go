// Package worker provides async SAR generation for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/sar"
)

// riskAlertThreshold is the minimum total risk score that triggers a
// risk.alert event alongside the generated report.
const riskAlertThreshold = 50

// Worker consumes generate requests from the EventBus and runs the SAR
// pipeline for each one.
type Worker struct {
	bus     domain.EventBus
	service *sar.Service
	logger  *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// GenerateRequest is the payload for harrier.sar.generate.requested.
type GenerateRequest struct {
	CustomerID string `json:"customerId"`
	RequestID  string `json:"requestId,omitempty"`
}

// GenerateResult is published to harrier.sar.generated with the outcome
// of an async request. Error is set when generation failed.
type GenerateResult struct {
	RequestID  string `json:"requestId,omitempty"`
	CustomerID string `json:"customerId"`
	SarID      string `json:"sarId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RiskAlert is published to harrier.risk.alert when a generated report
// crosses the alert threshold.
type RiskAlert struct {
	CustomerID     string   `json:"customerId"`
	SarID          string   `json:"sarId"`
	TotalRiskScore int      `json:"totalRiskScore"`
	TriggeredRules []string `json:"triggeredRules"`
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, service *sar.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the generate request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicGenerateRequested, w.handleGenerateRequest)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started",
		"topic", domain.TopicGenerateRequested,
	)
	return nil
}

func (w *Worker) handleGenerateRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req GenerateRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		w.logger.Error("failed to parse generate request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = msg.ID
	}

	w.logger.Debug("processing generate request",
		"customer_id", req.CustomerID,
		"request_id", requestID,
	)

	report, err := w.service.Generate(ctx, req.CustomerID)
	if err != nil {
		w.logger.Error("async generation failed",
			"customer_id", req.CustomerID,
			"request_id", requestID,
			"error", err,
		)
		w.publish(ctx, domain.TopicSarGenerated, GenerateResult{
			RequestID:  requestID,
			CustomerID: req.CustomerID,
			Error:      err.Error(),
		})
		return err
	}

	risk, err := w.service.CalculateRisk(ctx, req.CustomerID)
	if err == nil && risk.TotalRiskScore >= riskAlertThreshold {
		w.publish(ctx, domain.TopicRiskAlert, RiskAlert{
			CustomerID:     req.CustomerID,
			SarID:          report.ID,
			TotalRiskScore: risk.TotalRiskScore,
			TriggeredRules: risk.TriggeredRules,
		})
	}

	w.logger.Info("generate request processed",
		"customer_id", req.CustomerID,
		"request_id", requestID,
		"sar_id", report.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("failed to marshal event payload",
			"topic", topic,
			"error", err,
		)
		return
	}
	if err := w.bus.Publish(ctx, topic, data); err != nil {
		w.logger.Error("failed to publish event",
			"topic", topic,
			"error", err,
		)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("worker stopped")
	return nil
}
