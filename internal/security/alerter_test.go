package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestAuditAlerterTriggersOnAdminDenials(t *testing.T) {
	mr := miniredis.RunT(t)
	alerter := NewAuditAlerter(mr.Addr(), "", "test:alerts")
	if alerter == nil {
		t.Fatalf("expected alerter")
	}
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		result, err := alerter.Observe(ctx, "admin.batch_update.authorize", "fail", "10.0.0.7")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered != (i == 5) {
			t.Fatalf("attempt %d: triggered = %v", i, result.Triggered)
		}
	}
	result, _ := alerter.Observe(ctx, "admin.batch_update.authorize", "fail", "10.0.0.8")
	if result.Triggered || result.Count != 1 {
		t.Fatalf("counters must be per ip, got %+v", result)
	}
}

func TestAuditAlerterWindowRollsOver(t *testing.T) {
	mr := miniredis.RunT(t)
	alerter := NewAuditAlerter(mr.Addr(), "", "")
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 19; i++ {
		_, _ = alerter.Observe(ctx, "muhurat.catalog.write", "rate_limited", "10.0.0.1")
	}
	now = now.Add(time.Minute)
	result, err := alerter.Observe(ctx, "muhurat.catalog.write", "rate_limited", "10.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("new window must restart the count, got %+v", result)
	}
}

func TestAuditAlerterIgnoresUnknownRuleAndNil(t *testing.T) {
	mr := miniredis.RunT(t)
	alerter := NewAuditAlerter(mr.Addr(), "", "test:alerts")
	result, err := alerter.Observe(context.Background(), "muhurat.authorize", "success", "127.0.0.1")
	if err != nil || result.Triggered {
		t.Fatalf("unexpected result %+v err %v", result, err)
	}
	var disabled *AuditAlerter
	if _, err := disabled.Observe(context.Background(), "muhurat.authorize", "fail", "127.0.0.1"); err != nil {
		t.Fatalf("nil alerter must be a no-op, got %v", err)
	}
	if NewAuditAlerter("", "", "") != nil {
		t.Fatalf("empty addr must disable alerting")
	}
}
