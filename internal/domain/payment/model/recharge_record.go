package model

import (
	baseModel "nanobanana_backend/pkg/model"
)

// RechargeRecord 充值/扣费记录
// 状态机：pending → completed | failed；completed → refunded
// transaction_id 为商户订单号（外部网关侧的 out_trade_no），存在时唯一；
// external_trade_no 为网关返回的交易号。package_id 非空表示本次支付用于购买套餐。
type RechargeRecord struct {
	baseModel.BaseModel
	UserID          string  `gorm:"index;not null;type:uuid" json:"userId"`
	Amount          float64 `gorm:"type:decimal(10,2);not null" json:"amount"`
	PaymentMethod   string  `gorm:"not null" json:"paymentMethod"` // wxpay, alipay, balance, manual
	TransactionID   *string `gorm:"uniqueIndex" json:"transactionId"`
	ExternalTradeNo *string `json:"externalTradeNo"`
	PackageID       *string `gorm:"type:uuid" json:"packageId"`
	Status          string  `gorm:"default:'pending';index" json:"status"`
	RefundReason    *string `json:"refundReason,omitempty"`
}

// TableName 指定表名
func (RechargeRecord) TableName() string {
	return "recharge_records"
}

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"

	MethodWxpay   = "wxpay"
	MethodAlipay  = "alipay"
	MethodBalance = "balance"
	MethodManual  = "manual"
)
