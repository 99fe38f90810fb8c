package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/pkg/notifier"
	"github.com/kudoai/billing_go_server/internal/repository"
	"github.com/kudoai/billing_go_server/internal/service"
)

const expiredBatchSize = 200

// Service 订阅清扫定时任务：
//  1. 到期订阅停用，必要时清零订阅币
//  2. 即将到期的订阅提前提醒，每个订阅只提醒一次
type Service struct {
	subscriptionService *service.SubscriptionService
	subRepo             *repository.SubscriptionRepository
	notify              notifier.Notifier
	interval            time.Duration
	warnBefore          time.Duration
	stopChan            chan struct{}
}

func NewService(
	subscriptionService *service.SubscriptionService,
	subRepo *repository.SubscriptionRepository,
	notify notifier.Notifier,
	intervalMinutes, warnDaysBefore int,
) *Service {
	interval := time.Duration(intervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	warnBefore := time.Duration(warnDaysBefore) * 24 * time.Hour
	if warnBefore <= 0 {
		warnBefore = 3 * 24 * time.Hour
	}
	return &Service{
		subscriptionService: subscriptionService,
		subRepo:             subRepo,
		notify:              notify,
		interval:            interval,
		warnBefore:          warnBefore,
		stopChan:            make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.run()
	log.Println("Sweeper service started (subscription expiry + warnings)")
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	log.Println("Sweeper service stopped")
}

func (s *Service) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepAll()
		}
	}
}

func (s *Service) sweepAll() {
	expired := s.SweepExpired()
	warned := s.SweepWarnings()
	if expired > 0 || warned > 0 {
		log.Printf("Sweep summary: expired=%d, warned=%d", expired, warned)
	}
}

// SweepExpired 处理到期订阅，返回处理条数。
// 每轮重复执行是安全的：已处理的订阅不会再被查出来
func (s *Service) SweepExpired() int {
	now := time.Now()
	processed := 0

	for {
		subs, err := s.subRepo.ListExpired(now, expiredBatchSize)
		if err != nil {
			log.Printf("Sweep expired: query failed: %v", err)
			return processed
		}
		if len(subs) == 0 {
			return processed
		}

		for _, sub := range subs {
			lapsed, err := s.subscriptionService.Expire(sub)
			if err != nil {
				log.Printf("Sweep expired: subscription %d failed: %v", sub.ID, err)
				continue
			}
			processed++

			// 续了新订阅的用户不用打扰
			if lapsed {
				s.notifyExpired(sub)
			}
		}

		if len(subs) < expiredBatchSize {
			return processed
		}
	}
}

func (s *Service) notifyExpired(sub *model.Subscription) {
	text := "Ваша подписка истекла, монеты подписки сгорели. Оформите новую подписку, чтобы продолжить генерации."

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.notify.SendMessage(ctx, sub.UserID, text); err != nil {
		log.Printf("Sweep expired: subscription %d notify failed: %v", sub.ID, err)
	}
}

// SweepWarnings 给即将到期的订阅发提醒，返回发送条数。
// warned_at 落库后同一订阅不会重复提醒
func (s *Service) SweepWarnings() int {
	now := time.Now()
	until := now.Add(s.warnBefore)

	subs, err := s.subRepo.ListExpiringSoon(now, until)
	if err != nil {
		log.Printf("Sweep warnings: query failed: %v", err)
		return 0
	}

	sent := 0
	for _, sub := range subs {
		daysLeft := int(sub.EndDate.Sub(now).Hours()/24) + 1
		text := fmt.Sprintf("Ваша подписка истекает через %d дн. Продлите её, чтобы не потерять монеты подписки.", daysLeft)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.notify.SendMessage(ctx, sub.UserID, text)
		cancel()
		if err != nil {
			log.Printf("Sweep warnings: subscription %d notify failed: %v", sub.ID, err)
			continue
		}

		if err := s.subRepo.MarkWarned(sub.ID, now); err != nil {
			log.Printf("Sweep warnings: subscription %d mark failed: %v", sub.ID, err)
			continue
		}
		sent++
	}
	return sent
}

// RunNow 立即执行一轮清扫（用于测试或手动触发）
func (s *Service) RunNow() {
	log.Println("Manual sweep triggered...")
	s.sweepAll()
}
