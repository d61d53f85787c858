package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户模块错误 100xx
	ErrUserExists   = 10001
	ErrUserNotFound = 10002
	ErrAuthFailed   = 10003
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 套餐/权益模块错误 200xx
	ErrPackageNotFound  = 20001
	ErrPackageInactive  = 20002
	ErrPackageExists    = 20003
	ErrTimesExhausted   = 20004

	// 支付模块错误 300xx
	ErrChargeNotFound       = 30001
	ErrInsufficientBalance  = 30002
	ErrSignatureInvalid     = 30003
	ErrStateConflict        = 30004
	ErrPaymentDisabled      = 30005
	ErrExternalService      = 30006

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
