package errs

import (
	"errors"
)

// 定义统一的错误类型
var (
	ErrInvalidParameter = errors.New("参数错误")

	ErrConfigNotFound      = errors.New("供应商配置不存在")
	ErrConfigNameDuplicate = errors.New("同租户同渠道下供应商名称已存在")
	ErrInvalidConfigState  = errors.New("供应商配置状态不允许该操作")

	ErrNoAvailableProvider = errors.New("无可用供应商")
	ErrCredential          = errors.New("凭证处理失败")

	ErrAttemptExhausted = errors.New("重试次数已用尽")
)
