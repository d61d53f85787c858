package service

import (
	"context"
	"errors"

	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/generation/model"
	"nanobanana_backend/internal/domain/generation/repository"
	"nanobanana_backend/internal/pkg/imageapi"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/metrics"

	"go.uber.org/zap"
)

// ErrTimesExhausted 可用次数不足
var ErrTimesExhausted = errors.New("no available generation times")

// GenerateInput 生成请求参数
type GenerateInput struct {
	Prompt string
	Model  string
}

// GenerationService 图像生成服务
// 生成前校验可用次数，生成成功后消耗次数并落生成记录
type GenerationService interface {
	Generate(ctx context.Context, userID string, in GenerateInput) (*model.GenerationHistory, error)
	History(userID string, page, pageSize int) ([]model.GenerationHistory, int64, error)
}

type generationService struct {
	repo        repository.HistoryRepository
	entitlement entitlementService.Service
	client      imageapi.Client
}

// NewGenerationService 创建生成服务
func NewGenerationService(repo repository.HistoryRepository, entitlement entitlementService.Service, client imageapi.Client) GenerationService {
	return &generationService{repo: repo, entitlement: entitlement, client: client}
}

// Generate 执行一次图像生成
// 次数校验与消耗之间不是原子的，极端并发下可能短暂超用，这里接受该误差
func (s *generationService) Generate(ctx context.Context, userID string, in GenerateInput) (*model.GenerationHistory, error) {
	available, err := s.entitlement.AvailableTimes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, ErrTimesExhausted
	}

	result, err := s.client.Generate(ctx, imageapi.GenerateInput{
		Prompt: in.Prompt,
		Model:  in.Model,
	})
	if err != nil {
		// 失败不扣次数，但保留失败记录便于排查
		history := &model.GenerationHistory{
			UserID:       userID,
			Prompt:       in.Prompt,
			Model:        in.Model,
			Status:       model.StatusFailed,
			ErrorMessage: err.Error(),
			TimesCost:    0,
		}
		if createErr := s.repo.Create(history); createErr != nil {
			logger.Log.Error("failed to record generation failure",
				zap.String("user_id", userID), zap.Error(createErr))
		}
		return nil, err
	}

	history := &model.GenerationHistory{
		UserID:    userID,
		Prompt:    in.Prompt,
		Model:     result.Model,
		ImageURL:  result.ImageURL,
		Status:    model.StatusSuccess,
		TimesCost: 1,
	}
	if err := s.repo.Create(history); err != nil {
		return nil, err
	}

	fully, err := s.entitlement.Consume(ctx, userID, 1)
	switch {
	case err != nil:
		logger.Log.Error("failed to consume generation times",
			zap.String("user_id", userID), zap.Error(err))
	case !fully:
		// 校验到消耗之间被并发用尽，只记日志不回滚生成结果
		logger.Log.Warn("generation times exhausted during consume",
			zap.String("user_id", userID))
	default:
		metrics.Default.TimesConsumedTotal.Inc()
	}

	return history, nil
}

// History 分页查询生成记录
func (s *generationService) History(userID string, page, pageSize int) ([]model.GenerationHistory, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.GetByUser(userID, (page-1)*pageSize, pageSize)
}
