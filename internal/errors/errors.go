// Package errors はゲーム全体で共有するコード付きエラーを提供します。
package errors

// Code は機械可読なエラーコードです。
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// canon
	CodeSchemaViolation Code = "SCHEMA_VIOLATION"
	CodeInvariantDrift  Code = "INVARIANT_DRIFT"

	// gameplay
	CodeActionRejected    Code = "ACTION_REJECTED"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeGameNotPlayable   Code = "GAME_NOT_PLAYABLE"

	// rig
	CodeConnectionFailure Code = "CONNECTION_FAILURE"
	CodeRateLimitOverflow Code = "RATE_LIMIT_OVERFLOW"
	CodeProtocolError     Code = "PROTOCOL_ERROR"
	CodeParityViolation   Code = "PARITY_VIOLATION"

	// storage
	CodeNotFound Code = "NOT_FOUND"
)

// Error はメタデータ付きのドメインエラーです。
type Error struct {
	Code     Code              // 機械可読なコード
	Message  string            // ログ向けメッセージ
	Metadata map[string]string // 追加情報
	Cause    error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is はコードが一致すれば同一とみなします。
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New はコードとメッセージだけのエラーを生成します。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata はメタデータ付きのエラーを生成します。
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap は原因エラーを包んだエラーを生成します。
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf はエラーチェーンから最初に見つかったコードを返します。
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return CodeUnknown
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}
