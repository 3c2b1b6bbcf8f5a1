package xclassify

// Category 表示规范化的错误类别。
//
// 底层为 string，便于直接用作指标标签和日志字段。
type Category string

// 规范错误类别。
const (
	// CategoryTimeout 超时错误
	CategoryTimeout Category = "timeout"

	// CategoryNetwork 网络错误
	CategoryNetwork Category = "network"

	// CategoryRateLimit 限流错误
	CategoryRateLimit Category = "rate_limit"

	// CategoryAuth 认证授权错误
	CategoryAuth Category = "authentication"

	// CategoryValidation 参数校验错误
	CategoryValidation Category = "validation"

	// CategoryServerError 服务端错误
	CategoryServerError Category = "server_error"

	// CategoryUnknown 未知错误
	CategoryUnknown Category = "unknown"
)

// String 返回类别的字符串表示。
func (c Category) String() string {
	return string(c)
}

// Valid 判断类别是否为已定义的规范类别。
func (c Category) Valid() bool {
	switch c {
	case CategoryTimeout, CategoryNetwork, CategoryRateLimit,
		CategoryAuth, CategoryValidation, CategoryServerError, CategoryUnknown:
		return true
	default:
		return false
	}
}

// Categories 返回所有规范类别的列表。
// 每次调用返回新的切片，调用者可安全修改。
func Categories() []Category {
	return []Category{
		CategoryTimeout,
		CategoryNetwork,
		CategoryRateLimit,
		CategoryAuth,
		CategoryValidation,
		CategoryServerError,
		CategoryUnknown,
	}
}
