// Package monitoring provides alerting on polling session outcomes
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertType represents the type of alert
type AlertType string

const (
	AlertTypePollingErrors AlertType = "polling_errors"
	AlertTypeTaskFailures  AlertType = "task_failures"
	AlertTypeEmptyResults  AlertType = "empty_results"
)

// Session outcomes recorded by the alert manager
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeErrored   = "errored"
	OutcomeEmpty     = "empty_results"
	OutcomeCancelled = "cancelled"
)

// Alert represents an alert
type Alert struct {
	ID          string                 `json:"id"`
	Type        AlertType              `json:"type"`
	Severity    AlertSeverity          `json:"severity"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Labels      map[string]string      `json:"labels"`
	Annotations map[string]interface{} `json:"annotations"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
}

// AlertRule fires when the share of matching outcomes within the recent
// window reaches Threshold.
type AlertRule struct {
	Name        string
	Type        AlertType
	Severity    AlertSeverity
	Outcome     string
	Threshold   float64
	MinSamples  int
	Title       string
	Description string
	Labels      map[string]string
	Enabled     bool
}

// Notifier interface for sending alert notifications
type Notifier interface {
	Send(alert *Alert) error
	Name() string
}

// LogNotifier sends alerts to the log
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(alert *Alert) error {
	level := logrus.InfoLevel
	switch alert.Severity {
	case SeverityHigh:
		level = logrus.WarnLevel
	case SeverityCritical:
		level = logrus.ErrorLevel
	}

	n.logger.WithFields(logrus.Fields{
		"alert_id":    alert.ID,
		"alert_type":  alert.Type,
		"severity":    alert.Severity,
		"labels":      alert.Labels,
		"annotations": alert.Annotations,
	}).Log(level, fmt.Sprintf("ALERT: %s - %s", alert.Title, alert.Description))

	return nil
}

// AlertManager keeps a sliding window of session outcomes and raises
// alerts when a rule's threshold is crossed.
type AlertManager struct {
	alerts    map[string]*Alert
	mutex     sync.RWMutex
	logger    *logrus.Logger
	rules     []AlertRule
	notifiers []Notifier
	outcomes  []string
	window    int
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	seq       int
}

// NewAlertManager creates a new alert manager evaluating its rules every
// interval over the last window outcomes.
func NewAlertManager(logger *logrus.Logger, window int, interval time.Duration) *AlertManager {
	if window <= 0 {
		window = 20
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())

	am := &AlertManager{
		alerts:    make(map[string]*Alert),
		logger:    logger,
		rules:     getDefaultAlertRules(),
		notifiers: []Notifier{NewLogNotifier(logger)},
		window:    window,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}

	go am.evaluateRules()

	return am
}

func getDefaultAlertRules() []AlertRule {
	labels := map[string]string{"service": "scrape-monitor"}
	return []AlertRule{
		{
			Name:        "High Polling Error Rate",
			Type:        AlertTypePollingErrors,
			Severity:    SeverityHigh,
			Outcome:     OutcomeErrored,
			Threshold:   0.5,
			MinSamples:  4,
			Title:       "Status checks against the scraping backend are failing",
			Description: "Half or more of recent polling sessions ended with a transport error",
			Labels:      labels,
			Enabled:     true,
		},
		{
			Name:        "High Task Failure Rate",
			Type:        AlertTypeTaskFailures,
			Severity:    SeverityMedium,
			Outcome:     OutcomeFailed,
			Threshold:   0.5,
			MinSamples:  4,
			Title:       "Scraping tasks are failing",
			Description: "Half or more of recent tasks were reported as failed by the backend",
			Labels:      labels,
			Enabled:     true,
		},
		{
			Name:        "Empty Results",
			Type:        AlertTypeEmptyResults,
			Severity:    SeverityLow,
			Outcome:     OutcomeEmpty,
			Threshold:   0.25,
			MinSamples:  4,
			Title:       "Completed tasks without results",
			Description: "Backend reports completion but stores no result records",
			Labels:      labels,
			Enabled:     true,
		},
	}
}

// RecordOutcome appends a session outcome to the sliding window
func (am *AlertManager) RecordOutcome(outcome string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.outcomes = append(am.outcomes, outcome)
	if len(am.outcomes) > am.window {
		am.outcomes = am.outcomes[len(am.outcomes)-am.window:]
	}
}

// OutcomeRate returns the share of the window matching outcome and the
// number of samples in the window
func (am *AlertManager) OutcomeRate(outcome string) (float64, int) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	if len(am.outcomes) == 0 {
		return 0, 0
	}
	matched := 0
	for _, o := range am.outcomes {
		if o == outcome {
			matched++
		}
	}
	return float64(matched) / float64(len(am.outcomes)), len(am.outcomes)
}

func (am *AlertManager) evaluateRules() {
	ticker := time.NewTicker(am.interval)
	defer ticker.Stop()

	for {
		select {
		case <-am.ctx.Done():
			return
		case <-ticker.C:
			am.EvaluateAllRules()
		}
	}
}

// EvaluateAllRules evaluates all enabled alert rules once
func (am *AlertManager) EvaluateAllRules() {
	am.mutex.RLock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mutex.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		rate, samples := am.OutcomeRate(rule.Outcome)
		if samples >= rule.MinSamples && rate >= rule.Threshold {
			am.triggerAlert(rule, rate)
		} else {
			am.resolveType(rule.Type)
		}
	}
}

func (am *AlertManager) triggerAlert(rule AlertRule, rate float64) {
	am.mutex.Lock()
	for _, existing := range am.alerts {
		if existing.Type == rule.Type && !existing.Resolved {
			am.mutex.Unlock()
			return
		}
	}
	am.seq++
	alert := &Alert{
		ID:          fmt.Sprintf("%s-%d-%d", rule.Type, time.Now().Unix(), am.seq),
		Type:        rule.Type,
		Severity:    rule.Severity,
		Title:       rule.Title,
		Description: rule.Description,
		Timestamp:   time.Now(),
		Labels:      rule.Labels,
		Annotations: map[string]interface{}{"rate": fmt.Sprintf("%.2f", rate)},
	}
	am.alerts[alert.ID] = alert
	notifiers := append([]Notifier(nil), am.notifiers...)
	am.mutex.Unlock()

	for _, notifier := range notifiers {
		if err := notifier.Send(alert); err != nil {
			am.logger.WithError(err).WithField("notifier", notifier.Name()).Error("Failed to send alert notification")
		}
	}
}

func (am *AlertManager) resolveType(alertType AlertType) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	for id, alert := range am.alerts {
		if alert.Type == alertType && !alert.Resolved {
			now := time.Now()
			alert.Resolved = true
			alert.ResolvedAt = &now
			am.logger.WithFields(logrus.Fields{
				"alert_id": id,
				"type":     alert.Type,
			}).Info("Alert resolved")
		}
	}
}

// GetActiveAlerts returns all active (unresolved) alerts
func (am *AlertManager) GetActiveAlerts() []*Alert {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	var activeAlerts []*Alert
	for _, alert := range am.alerts {
		if !alert.Resolved {
			activeAlerts = append(activeAlerts, alert)
		}
	}

	return activeAlerts
}

// AddNotifier adds a new notifier
func (am *AlertManager) AddNotifier(notifier Notifier) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.notifiers = append(am.notifiers, notifier)
}

// Stop stops the alert manager
func (am *AlertManager) Stop() {
	am.cancel()
}
