package service

import (
	"time"

	"github.com/kudoai/billing_go_server/internal/model/dto"
	"github.com/kudoai/billing_go_server/internal/repository"
)

// StatsService 消费统计查询
type StatsService struct {
	txRepo *repository.TransactionRepository
}

func NewStatsService(txRepo *repository.TransactionRepository) *StatsService {
	return &StatsService{txRepo: txRepo}
}

// GetSpendingStats 周期内的消费汇总，含按功能拆分
func (s *StatsService) GetSpendingStats(userID int64, days int) (*dto.SpendingStats, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	totals, err := s.txRepo.GetSpendingStats(userID, since)
	if err != nil {
		return nil, err
	}
	features, err := s.txRepo.GetFeatureStats(userID, since)
	if err != nil {
		return nil, err
	}

	stats := &dto.SpendingStats{
		TotalSpent:    totals.TotalSpent,
		TotalReceived: totals.TotalReceived,
		SpendCount:    totals.SpendCount,
		ReceiveCount:  totals.ReceiveCount,
		PeriodDays:    days,
		Features:      make([]dto.FeatureSpendStat, 0, len(features)),
	}
	for _, f := range features {
		stats.Features = append(stats.Features, dto.FeatureSpendStat{
			Feature:    f.Feature,
			UsageCount: f.UsageCount,
			TotalCoins: f.TotalCoins,
		})
	}
	return stats, nil
}
