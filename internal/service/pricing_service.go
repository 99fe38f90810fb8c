package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/kudoai/billing_go_server/config"
)

var (
	ErrUnknownFeature = errors.New("未知的计费功能")
	ErrPlanNotFound   = errors.New("套餐不存在")
	ErrPackNotFound   = errors.New("充值包不存在")
)

// FeatureKind 计费功能种类，封闭集合。
// 不认识的种类直接报错，没有"默认 1 个币"这种兜底
type FeatureKind string

const (
	FeatureImageBasic        FeatureKind = "image_basic"
	FeatureImageUpscale      FeatureKind = "image_upscale"
	FeatureImageEnhance      FeatureKind = "image_enhance"
	FeatureVirtualTryon      FeatureKind = "virtual_tryon"
	FeatureVirtualTryonBatch FeatureKind = "virtual_tryon_batch"
	FeatureJSONGeneration    FeatureKind = "json_generation"
	FeatureVideo             FeatureKind = "video" // 按秒计费
)

// 固定价目表（金币）
var fixedCosts = map[FeatureKind]int{
	FeatureImageBasic:        1,
	FeatureImageUpscale:      2,
	FeatureImageEnhance:      3,
	FeatureVirtualTryon:      3,
	FeatureVirtualTryonBatch: 8,
	FeatureJSONGeneration:    26,
}

// Feature 一次计费的功能描述
type Feature struct {
	Kind      FeatureKind
	Seconds   int  // 仅视频
	WithAudio bool // 仅视频
}

// VideoFeature 按时长构造视频功能
func VideoFeature(seconds int, withAudio bool) Feature {
	return Feature{Kind: FeatureVideo, Seconds: seconds, WithAudio: withAudio}
}

// Key 账本里记录的功能标识，如 video_8s_audio
func (f Feature) Key() string {
	if f.Kind == FeatureVideo {
		suffix := "mute"
		if f.WithAudio {
			suffix = "audio"
		}
		return fmt.Sprintf("video_%ds_%s", f.Seconds, suffix)
	}
	return string(f.Kind)
}

// PricingService 功能定价。纯函数，无状态依赖。
// 视频每秒费率在构造时算一次并缓存，此后价格调整不影响已入账的记录
type PricingService struct {
	rateMute  int
	rateAudio int
}

func NewPricingService(cfg *config.VideoPricingConfig) *PricingService {
	return &PricingService{
		rateMute:  perSecondRate(cfg.CostPerSecondMute, cfg.MarginMultiplier, cfg.CoinUnitValue),
		rateAudio: perSecondRate(cfg.CostPerSecondAudio, cfg.MarginMultiplier, cfg.CoinUnitValue),
	}
}

// perSecondRate = round(外部成本 × 加价倍数 / 单币价值)
func perSecondRate(externalCost, margin, coinUnit float64) int {
	if coinUnit <= 0 {
		return 0
	}
	return int(math.Round(externalCost * margin / coinUnit))
}

// Cost 计算功能价格（金币）
func (s *PricingService) Cost(f Feature) (int, error) {
	switch f.Kind {
	case FeatureVideo:
		if f.Seconds <= 0 {
			return 0, fmt.Errorf("%w: 视频时长无效", ErrUnknownFeature)
		}
		rate := s.rateMute
		if f.WithAudio {
			rate = s.rateAudio
		}
		return rate * f.Seconds, nil
	default:
		cost, ok := fixedCosts[f.Kind]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, f.Kind)
		}
		return cost, nil
	}
}

// ParseFeatureKey 把账本/接口里的功能标识还原成 Feature
func ParseFeatureKey(key string) (Feature, error) {
	if _, ok := fixedCosts[FeatureKind(key)]; ok {
		return Feature{Kind: FeatureKind(key)}, nil
	}

	var seconds int
	var suffix string
	if n, err := fmt.Sscanf(key, "video_%ds_%s", &seconds, &suffix); err == nil && n == 2 && seconds > 0 {
		switch suffix {
		case "mute":
			return VideoFeature(seconds, false), nil
		case "audio":
			return VideoFeature(seconds, true), nil
		}
	}

	return Feature{}, fmt.Errorf("%w: %s", ErrUnknownFeature, key)
}

// CatalogService 套餐与充值包目录
type CatalogService struct {
	cfg *config.PricingConfig
}

func NewCatalogService(cfg *config.PricingConfig) *CatalogService {
	return &CatalogService{cfg: cfg}
}

// GetPlan 按名称获取订阅套餐
func (s *CatalogService) GetPlan(name string) (*config.PlanConfig, error) {
	plan, ok := s.cfg.Plans[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, name)
	}
	return &plan, nil
}

// GetTopupPack 按金币数获取充值包
func (s *CatalogService) GetTopupPack(coins int) (*config.TopupPackConfig, error) {
	for _, pack := range s.cfg.TopupPacks {
		if pack.Coins == coins {
			p := pack
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %d 金币", ErrPackNotFound, coins)
}
