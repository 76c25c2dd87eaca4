package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wyfcoding/compliancepipeline/internal/compliance/domain"
	"github.com/wyfcoding/compliancepipeline/pkg/logger"
)

// WebhookNotifier 将审计报告 POST 到配置的 URL
type WebhookNotifier struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookNotifier 构造函数
func NewWebhookNotifier(name, url string) *WebhookNotifier {
	return &WebhookNotifier{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name 通知器名称
func (n *WebhookNotifier) Name() string { return n.name }

// Notify 投递报告
func (n *WebhookNotifier) Notify(ctx context.Context, report *domain.AuditReport) error {
	body, err := json.Marshal(newAlertPayload(report))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", n.url, resp.StatusCode)
	}

	logger.Debug(ctx, "webhook notified",
		"notifier", n.name,
		"report_id", report.ReportID,
	)
	return nil
}
