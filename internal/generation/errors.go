package generation

import (
	"errors"
	"fmt"

	"github.com/p-n-ai/pai-worksheet/internal/options"
)

// User-facing messages.
const (
	MsgConfiguration  = "Server configuration error: API key not found."
	MsgGenerateFailed = "문제 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgReplaceFailed  = "문제 교체 중 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
	MsgBudgetExceeded = "사용 가능한 생성 한도를 모두 사용했습니다. 나중에 다시 시도해주세요."
)

// ErrBudgetExceeded is returned before any LLM call when the requester has no tokens left.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// ConfigurationError means no provider or credential is configured.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "generator not configured: " + e.Reason
}

// TransportError is a failed call to the generation service.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: generation service: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError is a response that is not valid JSON or does not match the problem schema.
// Raw keeps the payload for logs and is never shown to users.
type MalformedResponseError struct {
	Op     string
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// UserMessage maps err to the text shown to the teacher. fallback covers transport and malformed failures.
func UserMessage(err error, fallback string) string {
	var verr *options.ValidationError
	var cerr *ConfigurationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &cerr):
		return MsgConfiguration
	case errors.Is(err, ErrBudgetExceeded):
		return MsgBudgetExceeded
	default:
		return fallback
	}
}
