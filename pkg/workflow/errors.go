package workflow

import (
	"errors"
	"fmt"
)

// Kind is the stable machine-readable classification of a workflow error.
// Every kind is a recoverable-by-caller condition, not a crash; retries
// (e.g. on ConcurrentModification) are caller-driven.
type Kind string

const (
	KindInvalidTransition      Kind = "InvalidTransition"      // 当前状态下不允许的转移
	KindInvalidState           Kind = "InvalidState"           // 联合状态(status+escrow)校验失败
	KindCapacityExceeded       Kind = "CapacityExceeded"       // 导师容量已满
	KindEscrowNotFunded        Kind = "EscrowNotFunded"        // 托管未注资
	KindIrreversibleState      Kind = "IrreversibleState"      // 已过不可逆点
	KindOfferExpired           Kind = "OfferExpired"           // offer已过期
	KindInvalidEscalation      Kind = "InvalidEscalation"      // 非法的争议升级
	KindConcurrentModification Kind = "ConcurrentModification" // 乐观锁冲突
	KindSubjectNotActive       Kind = "SubjectNotActive"       // 争议主体不处于活跃状态
	KindDisputeSuspended       Kind = "DisputeSuspended"       // 主体存在未决争议
	KindNotFound               Kind = "NotFound"               // 实体不存在
)

// Error is a typed workflow error carrying a stable kind and a human message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a typed workflow error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
