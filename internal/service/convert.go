package service

import (
	"time"

	v1 "credit-service/api/credit/v1"
	"credit-service/internal/biz"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toBalance(a *biz.Account) *v1.Balance {
	if a == nil {
		return nil
	}
	return &v1.Balance{
		UserID:           a.UserID,
		TotalCredits:     a.TotalCredits,
		UsedCredits:      a.UsedCredits,
		RemainingCredits: a.RemainingCredits,
		UpdatedAt:        formatTime(a.UpdatedAt),
	}
}

func toUsageRecord(r *biz.UsageRecord) *v1.UsageRecord {
	return &v1.UsageRecord{
		ID:          r.ID,
		OrderID:     r.OrderID,
		FeatureID:   r.FeatureID,
		Amount:      r.Amount,
		Type:        r.Type,
		Description: r.Description,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func toUsageSummary(s *biz.UsageSummary) *v1.UsageSummaryReply {
	reply := &v1.UsageSummaryReply{
		UserID:           s.UserID,
		Period:           s.Period,
		From:             formatTime(s.From),
		To:               formatTime(s.To),
		TotalCalls:       s.TotalCalls,
		CreditsUsed:      s.CreditsUsed,
		CreditsRefunded:  s.CreditsRefunded,
		CreditsPurchased: s.CreditsPurchased,
		Features:         make([]*v1.FeatureUsage, 0, len(s.Features)),
	}
	for _, f := range s.Features {
		reply.Features = append(reply.Features, &v1.FeatureUsage{
			FeatureID:       f.FeatureID,
			Calls:           f.Calls,
			CreditsUsed:     f.CreditsUsed,
			CreditsRefunded: f.CreditsRefunded,
		})
	}
	return reply
}

func toOrder(o *biz.Order) *v1.Order {
	if o == nil {
		return nil
	}
	order := &v1.Order{
		ID:              o.ID,
		PlanID:          o.PlanID,
		PlanName:        o.PlanName,
		Credits:         o.Credits,
		Amount:          o.Amount.StringFixed(2),
		Currency:        o.Currency,
		ExternalOrderID: o.ExternalOrderID,
		CaptureID:       o.CaptureID,
		Status:          o.Status,
		ErrorMessage:    o.ErrorMessage,
		CreatedAt:       formatTime(o.CreatedAt),
	}
	if o.CapturedAt != nil {
		order.CapturedAt = formatTime(*o.CapturedAt)
	}
	return order
}

func toProcessorDetails(d *biz.ExternalOrderDetails) *v1.ProcessorDetails {
	if d == nil {
		return nil
	}
	details := &v1.ProcessorDetails{
		ID:         d.ID,
		Status:     d.Status,
		Amount:     d.Amount,
		Currency:   d.Currency,
		CaptureID:  d.CaptureID,
		CreateTime: d.CreateTime,
	}
	if d.Payer != nil {
		details.Payer = &v1.Payer{ID: d.Payer.ID, Email: d.Payer.Email, Name: d.Payer.Name}
	}
	return details
}
