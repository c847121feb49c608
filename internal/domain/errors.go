package domain

import (
	"errors"
	"fmt"
)

// 核心错误分类（调用方通过 errors.Is / errors.As 判断）
var (
	// ErrNotFound 设备/报警/读数不存在
	ErrNotFound = errors.New("not found")

	// ErrConflict 状态冲突（如重复 resolve）
	ErrConflict = errors.New("conflict")

	// ErrForbidden 操作人无权限（权限校验由外部协作方执行）
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable 外部依赖不可用（Device Registry / Maintenance Log 超时或失败）
	ErrUnavailable = errors.New("unavailable")
)

// ValidationError 数据校验错误（字段缺失或非法）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError 创建校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
