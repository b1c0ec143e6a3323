package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），兼容 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - Snapshot/Model 错误：NO_DATA, STALE_CACHE
//   - Recall 错误：UNKNOWN_USER
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Tracker 错误：INVALID_INPUT
type DomainError struct {
	Code    string // 错误代码（如 "NO_DATA", "UNKNOWN_USER"）
	Message string // 错误消息
	Module  string // 模块名称（如 "model", "recall", "store"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 按 Module + Code 判等，便于 errors.Is 匹配哨兵错误。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
	ErrorCodeNoData        = "NO_DATA"        // 快照中没有用户或没有商品
	ErrorCodeUnknownUser   = "UNKNOWN_USER"   // 用户不在当前快照中
	ErrorCodeStaleCache    = "STALE_CACHE"    // 尚未成功训练过任何一代模型
)

// 模块名称常量
const (
	ModuleSnapshot = "snapshot" // 数据快照
	ModuleModel    = "model"    // 交互矩阵 / 相似度
	ModuleRecall   = "recall"   // 召回打分
	ModuleStore    = "store"    // 存储模块
	ModuleTracker  = "tracker"  // 交互埋点
)

var (
	// ErrNoData 表示快照中没有用户或没有商品，无法构建矩阵
	ErrNoData = NewDomainError(ModuleModel, ErrorCodeNoData, "model: snapshot has no users or no products")

	// ErrStaleCache 表示打分时还没有任何一次成功的训练
	ErrStaleCache = NewDomainError(ModuleModel, ErrorCodeStaleCache, "model: no trained generation available")

	// ErrUnknownUser 表示用户不在当前这一代快照中
	ErrUnknownUser = NewDomainError(ModuleRecall, ErrorCodeUnknownUser, "recall: unknown user")
)

// 通用错误检查函数

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsNoData 检查错误是否为 NO_DATA
func IsNoData(err error) bool {
	return hasCode(err, ErrorCodeNoData)
}

// IsUnknownUser 检查错误是否为 UNKNOWN_USER
func IsUnknownUser(err error) bool {
	return hasCode(err, ErrorCodeUnknownUser)
}

// IsStaleCache 检查错误是否为 STALE_CACHE
func IsStaleCache(err error) bool {
	return hasCode(err, ErrorCodeStaleCache)
}

// ErrorReason 把错误归类为一个稳定的短字符串，用于日志与监控打点。
func ErrorReason(err error) string {
	if err == nil {
		return ""
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ErrorCodeInternalError
}
