package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogRepo "nanobanana_backend/internal/domain/catalog/repository"
	entitlementService "nanobanana_backend/internal/domain/entitlement/service"
	"nanobanana_backend/internal/domain/payment/model"
	"nanobanana_backend/internal/domain/payment/repository"
	userRepo "nanobanana_backend/internal/domain/user/repository"
	userService "nanobanana_backend/internal/domain/user/service"
	"nanobanana_backend/internal/pkg/config"
	"nanobanana_backend/internal/pkg/epay"
	"nanobanana_backend/pkg/logger"
	"nanobanana_backend/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrPaymentDisabled 网关未启用
	ErrPaymentDisabled = errors.New("payment gateway is not enabled")
	// ErrUnsupportedMethod 不支持的支付方式
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	// ErrSignatureInvalid 回调验签失败
	ErrSignatureInvalid = errors.New("callback signature verification failed")
	// ErrStateConflict 非法的状态迁移（如退款非 completed 记录）
	ErrStateConflict = errors.New("invalid charge state transition")
	// ErrPackageInactive 套餐已下架
	ErrPackageInactive = errors.New("package is inactive")
)

// InsufficientBalanceError 余额不足，携带诊断信息
type InsufficientBalanceError struct {
	CurrentBalance float64
	RequiredAmount float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: current %.2f, required %.2f", e.CurrentBalance, e.RequiredAmount)
}

// Shortfall 差额
func (e *InsufficientBalanceError) Shortfall() float64 {
	return e.RequiredAmount - e.CurrentBalance
}

// Gateway 支付网关抽象，便于测试时注入假网关
type Gateway interface {
	CreateOrder(ctx context.Context, in epay.CreateOrderInput) (*epay.CreateOrderResult, error)
	QueryOrder(ctx context.Context, outTradeNo string) (*epay.QueryOrderResult, error)
	VerifyNotify(params map[string]string) bool
}

// CreateChargeInput 创建待支付充值记录参数
type CreateChargeInput struct {
	Amount        float64
	PaymentMethod string // wxpay / alipay / balance / manual
	PackageID     *string
}

// CreatePaymentInput 创建支付订单参数
type CreatePaymentInput struct {
	Type       string // wxpay / alipay
	Amount     float64
	PackageID  *string
	RechargeID *string // 复用已有 pending 记录
	ReturnURL  string
	ClientIP   string
}

// CreatePaymentResult 创建支付订单结果
type CreatePaymentResult struct {
	OutTradeNo    string  `json:"out_trade_no"`
	RechargeID    string  `json:"recharge_id"`
	TradeNo       string  `json:"trade_no"`
	PayURL        string  `json:"payurl"`
	QRCode        string  `json:"qrcode"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}

// BalancePayInput 余额支付参数
type BalancePayInput struct {
	Amount    float64
	PackageID *string
}

// BalancePayResult 余额支付结果
type BalancePayResult struct {
	TransactionID    string  `json:"transaction_id"`
	Amount           float64 `json:"amount"`
	RechargeID       string  `json:"recharge_id"`
	RemainingBalance float64 `json:"remaining_balance"`
}

// PaymentService 支付对账服务
// 负责充值记录的创建、网关回调的验签与状态迁移，以及入账（余额、权益、会员）
// 的原子执行。completed 迁移使用条件更新保证同一笔订单至多入账一次。
type PaymentService interface {
	// CreateCharge 创建一条 pending 充值记录，不触发网关下单；
	// 后续可通过 CreatePayment 复用该记录走网关，或由管理员人工确认
	CreateCharge(ctx context.Context, userID string, in CreateChargeInput) (*model.RechargeRecord, error)
	CreatePayment(ctx context.Context, userID string, in CreatePaymentInput) (*CreatePaymentResult, error)
	// HandleNotify 处理网关异步回调；验签失败返回 ErrSignatureInvalid
	HandleNotify(ctx context.Context, params map[string]string) error
	// ConfirmCharge 迁移订单状态并在 completed 时入账，重复确认幂等
	ConfirmCharge(ctx context.Context, chargeID string, succeed bool, externalTradeNo *string) error
	BalancePay(ctx context.Context, userID string, in BalancePayInput) (*BalancePayResult, error)
	Refund(ctx context.Context, chargeID, reason string) error
	QueryOrder(ctx context.Context, outTradeNo string) (*epay.QueryOrderResult, error)
	PaymentMethods() []epay.PaymentMethod
}

type paymentService struct {
	db          *gorm.DB
	repo        repository.RechargeRepository
	packages    catalogRepo.PackageRepository
	users       userService.UserService
	entitlement entitlementService.Service
	gateway     Gateway
}

// NewPaymentService 创建支付服务；gateway 可为 nil（网关未启用时仅余额支付可用）
func NewPaymentService(
	db *gorm.DB,
	repo repository.RechargeRepository,
	packages catalogRepo.PackageRepository,
	users userService.UserService,
	entitlement entitlementService.Service,
	gateway Gateway,
) PaymentService {
	return &paymentService{
		db:          db,
		repo:        repo,
		packages:    packages,
		users:       users,
		entitlement: entitlement,
		gateway:     gateway,
	}
}

// CreateCharge 创建待支付充值记录，无任何账本副作用
func (s *paymentService) CreateCharge(ctx context.Context, userID string, in CreateChargeInput) (*model.RechargeRecord, error) {
	if in.PackageID != nil {
		pkg, err := s.packages.GetByID(*in.PackageID)
		if err != nil {
			return nil, err
		}
		if !pkg.IsActive {
			return nil, ErrPackageInactive
		}
	}

	record := &model.RechargeRecord{
		UserID:        userID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		PackageID:     in.PackageID,
		Status:        model.StatusPending,
	}
	if err := s.repo.Create(nil, record); err != nil {
		return nil, err
	}

	metrics.Default.ChargesCreatedTotal.WithLabelValues(in.PaymentMethod).Inc()
	logger.Log.Info("charge record created",
		zap.String("charge_id", record.ID),
		zap.String("user_id", userID),
		zap.Float64("amount", in.Amount),
	)
	return record, nil
}

// CreatePayment 创建（或复用）pending 充值记录并调用网关下单，无任何账本副作用
// 复用已有记录时金额与套餐以记录为准，并把本次商户订单号绑定到记录上，
// 回调才能按 out_trade_no 找回它
func (s *paymentService) CreatePayment(ctx context.Context, userID string, in CreatePaymentInput) (*CreatePaymentResult, error) {
	if s.gateway == nil {
		return nil, ErrPaymentDisabled
	}
	if in.Type != model.MethodWxpay && in.Type != model.MethodAlipay {
		return nil, ErrUnsupportedMethod
	}

	outTradeNo := epay.GenerateOrderNo()

	amount := in.Amount
	packageID := in.PackageID
	var record *model.RechargeRecord
	if in.RechargeID != nil {
		existing, err := s.repo.GetByID(*in.RechargeID)
		if err != nil {
			return nil, err
		}
		if existing.UserID != userID {
			return nil, repository.ErrRecordNotFound
		}
		ok, err := s.repo.BindTransaction(nil, existing.ID, outTradeNo, in.Type)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrStateConflict
		}
		amount = existing.Amount
		packageID = existing.PackageID
		record = existing
	}

	productName := "充值服务"
	if packageID != nil {
		pkg, err := s.packages.GetByID(*packageID)
		if err != nil {
			return nil, err
		}
		if record == nil && !pkg.IsActive {
			return nil, ErrPackageInactive
		}
		productName = "套餐购买 - " + pkg.Name
	}

	if record == nil {
		record = &model.RechargeRecord{
			UserID:        userID,
			Amount:        amount,
			PaymentMethod: in.Type,
			TransactionID: &outTradeNo,
			PackageID:     packageID,
			Status:        model.StatusPending,
		}
		if err := s.repo.Create(nil, record); err != nil {
			return nil, err
		}
	}

	result, err := s.gateway.CreateOrder(ctx, epay.CreateOrderInput{
		Type:       in.Type,
		OutTradeNo: outTradeNo,
		Name:       productName,
		Money:      fmt.Sprintf("%.2f", amount),
		ClientIP:   in.ClientIP,
		ReturnURL:  in.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	metrics.Default.ChargesCreatedTotal.WithLabelValues(in.Type).Inc()

	return &CreatePaymentResult{
		OutTradeNo:    outTradeNo,
		RechargeID:    record.ID,
		TradeNo:       result.TradeNo,
		PayURL:        result.PayURL,
		QRCode:        result.QRCode,
		Amount:        amount,
		PaymentMethod: in.Type,
	}, nil
}

// HandleNotify 网关异步回调入口
// 验签失败不触碰任何账本状态；未知订单号记录日志后按接受处理（网关不再重试）
func (s *paymentService) HandleNotify(ctx context.Context, params map[string]string) error {
	if s.gateway == nil {
		return ErrPaymentDisabled
	}
	if !s.gateway.VerifyNotify(params) {
		metrics.Default.NotifyRejectedTotal.Inc()
		return ErrSignatureInvalid
	}

	outTradeNo := params["out_trade_no"]
	tradeNo := params["trade_no"]
	tradeStatus := params["trade_status"]

	logger.Log.Info("payment notify received",
		zap.String("out_trade_no", outTradeNo),
		zap.String("trade_no", tradeNo),
		zap.String("trade_status", tradeStatus),
		zap.String("money", params["money"]),
	)

	if tradeStatus != epay.TradeStatusSuccess {
		return nil
	}

	record, err := s.repo.GetByTransactionID(outTradeNo)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			logger.Log.Error("notify for unknown charge", zap.String("out_trade_no", outTradeNo))
			return nil
		}
		return err
	}

	var ext *string
	if tradeNo != "" {
		ext = &tradeNo
	}
	return s.ConfirmCharge(ctx, record.ID, true, ext)
}

// ConfirmCharge 迁移充值记录状态
// completed 路径在单个事务内完成：条件更新 pending → completed，仅当条件
// 更新命中时才执行入账（余额、套餐权益、会员）；重复回调条件更新不命中，
// 不会再次入账
func (s *paymentService) ConfirmCharge(ctx context.Context, chargeID string, succeed bool, externalTradeNo *string) error {
	record, err := s.repo.GetByID(chargeID)
	if err != nil {
		return err
	}

	if !succeed {
		ok, err := s.repo.MarkFailed(nil, chargeID)
		if err != nil {
			return err
		}
		if !ok && record.Status != model.StatusFailed {
			return ErrStateConflict
		}
		return nil
	}

	credited := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkCompleted(tx, chargeID, externalTradeNo)
		if err != nil {
			return err
		}
		if !ok {
			// 已经 completed/refunded：幂等返回；failed：状态冲突
			if record.Status == model.StatusFailed {
				return ErrStateConflict
			}
			return nil
		}
		credited = true

		if err := s.users.CreditBalance(tx, record.UserID, record.Amount); err != nil {
			return err
		}

		if record.PackageID != nil {
			if err := s.activatePackage(tx, record.UserID, *record.PackageID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if credited {
		s.entitlement.InvalidateCache(ctx, record.UserID)
		metrics.Default.ChargesCompletedTotal.WithLabelValues(record.PaymentMethod).Inc()
		logger.Log.Info("charge completed and credited",
			zap.String("charge_id", chargeID),
			zap.String("user_id", record.UserID),
			zap.Float64("amount", record.Amount),
		)
	}
	return nil
}

// activatePackage 在事务内发放套餐权益并延长会员
func (s *paymentService) activatePackage(tx *gorm.DB, userID, packageID string) error {
	pkg, err := s.packages.GetByID(packageID)
	if err != nil {
		return err
	}

	expiresAt := time.Now().AddDate(0, 0, pkg.ValidityDays)

	if _, err := s.entitlement.GrantTx(tx, entitlementService.GrantInput{
		UserID:       userID,
		Label:        pkg.Name,
		TimesTotal:   pkg.UsageCount,
		Price:        pkg.Price,
		ValidityDays: pkg.ValidityDays,
		PackageID:    &packageID,
	}); err != nil {
		return err
	}

	return s.users.ExtendMembership(tx, userID, expiresAt)
}

// BalancePay 余额支付（同步路径，不经过外部网关）
// 余额不足直接拒绝，不产生任何记录；扣款后套餐发放失败时以补偿入账回冲
// 余额（尽力而为，非两阶段提交），错误原样上抛
func (s *paymentService) BalancePay(ctx context.Context, userID string, in BalancePayInput) (*BalancePayResult, error) {
	if !config.GlobalConfig.Epay.BalanceEnabled {
		return nil, ErrPaymentDisabled
	}

	balance, err := s.users.GetBalance(userID)
	if err != nil {
		return nil, err
	}
	if balance.Balance < in.Amount {
		return nil, &InsufficientBalanceError{
			CurrentBalance: balance.Balance,
			RequiredAmount: in.Amount,
		}
	}

	outTradeNo := epay.GenerateOrderNo()
	record := &model.RechargeRecord{
		UserID:        userID,
		Amount:        in.Amount,
		PaymentMethod: model.MethodBalance,
		TransactionID: &outTradeNo,
		PackageID:     in.PackageID,
		Status:        model.StatusCompleted,
	}

	// 记录创建与扣款在同一事务内；扣款为条件更新，并发下余额不足会失败
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, record); err != nil {
			return err
		}
		return s.users.DebitBalance(tx, userID, in.Amount)
	})
	if err != nil {
		if errors.Is(err, userRepo.ErrInsufficientBalance) {
			return nil, &InsufficientBalanceError{
				CurrentBalance: balance.Balance,
				RequiredAmount: in.Amount,
			}
		}
		return nil, err
	}

	if in.PackageID != nil {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.activatePackage(tx, userID, *in.PackageID)
		})
		if err != nil {
			// 补偿回冲已扣的余额，失败只能记日志人工介入
			if creditErr := s.users.CreditBalance(nil, userID, in.Amount); creditErr != nil {
				logger.Log.Error("balance-pay compensation failed, manual intervention required",
					zap.String("user_id", userID),
					zap.String("out_trade_no", outTradeNo),
					zap.Float64("amount", in.Amount),
					zap.Error(creditErr),
				)
			} else {
				logger.Log.Warn("balance-pay package grant failed, balance compensated",
					zap.String("user_id", userID),
					zap.String("out_trade_no", outTradeNo),
					zap.Error(err),
				)
			}
			return nil, err
		}
	}

	s.entitlement.InvalidateCache(ctx, userID)
	metrics.Default.ChargesCompletedTotal.WithLabelValues(model.MethodBalance).Inc()

	return &BalancePayResult{
		TransactionID:    outTradeNo,
		Amount:           in.Amount,
		RechargeID:       record.ID,
		RemainingBalance: balance.Balance - in.Amount,
	}, nil
}

// Refund 退款：completed → refunded 与余额扣减在同一事务内
// 余额此处允许为负（与入账侧的非负约束不同，保留参照实现行为）
func (s *paymentService) Refund(ctx context.Context, chargeID, reason string) error {
	record, err := s.repo.GetByID(chargeID)
	if err != nil {
		return err
	}
	if record.Status != model.StatusCompleted {
		return ErrStateConflict
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkRefunded(tx, chargeID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}
		return s.users.RefundBalance(tx, record.UserID, record.Amount)
	})
	if err != nil {
		return err
	}

	metrics.Default.RefundsTotal.Inc()
	logger.Log.Info("charge refunded",
		zap.String("charge_id", chargeID),
		zap.String("user_id", record.UserID),
		zap.Float64("amount", record.Amount),
		zap.String("reason", reason),
	)
	return nil
}

// QueryOrder 透传网关订单查询
func (s *paymentService) QueryOrder(ctx context.Context, outTradeNo string) (*epay.QueryOrderResult, error) {
	if s.gateway == nil {
		return nil, ErrPaymentDisabled
	}
	return s.gateway.QueryOrder(ctx, outTradeNo)
}

// PaymentMethods 根据配置开关返回可用支付方式
func (s *paymentService) PaymentMethods() []epay.PaymentMethod {
	cfg := config.GlobalConfig.Epay
	wxpay := cfg.WxpayEnabled && s.gateway != nil
	alipay := cfg.AlipayEnabled && s.gateway != nil
	return epay.GetPaymentMethods(wxpay, alipay, cfg.BalanceEnabled)
}
