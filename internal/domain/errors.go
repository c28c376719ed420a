package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with NewSubSystemError for subsystem-specific errors.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Transport errors. Every error a realtime client or the outbox reports through
// an error registry wraps one of these.
var (
	// ErrConnection is an open/read/write failure on the underlying connection.
	// It triggers reconnect scheduling unless the client was closed on purpose.
	ErrConnection = fmt.Errorf("connection error")
	// ErrParse is a malformed incoming frame. The connection stays open.
	ErrParse = fmt.Errorf("malformed frame")
	// ErrMaxRetries ends the current connection lifecycle; only a new Connect recovers.
	ErrMaxRetries = fmt.Errorf("Max reconnection attempts reached")
	// ErrPersistence is a storage failure while saving or loading the outbox.
	ErrPersistence = fmt.Errorf("persistence failed")
	// ErrSendOnly is returned by receive-only transports when asked to write.
	ErrSendOnly = fmt.Errorf("transport is receive-only")
)

// Collaborator errors (pairing, REST, config).
var (
	ErrNoServer          = fmt.Errorf("No server configured")
	ErrNotAuthenticated  = fmt.Errorf("Not authenticated")
	ErrSessionExpired    = fmt.Errorf("Session expired")
	ErrPairingFailed     = fmt.Errorf("Pairing failed")
	ErrServerUnreachable = fmt.Errorf("Server is not reachable")
	ErrInvalidCron       = fmt.Errorf("invalid cron expression")
	ErrCircuitOpen       = fmt.Errorf("server temporarily unavailable")
	ErrRequestFailed     = fmt.Errorf("request failed")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrEncryption        = fmt.Errorf("encryption operation failed")
	ErrDecryption        = fmt.Errorf("decryption failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "ChatClient.Send")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "chat", "feed"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsFatal reports whether err ends a connection lifecycle, i.e. the client
// will not recover without an explicit Connect.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMaxRetries)
}

// ErrorCode is a machine-parseable error category for status rendering.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeConnection       ErrorCode = "CONNECTION"
	CodeParse            ErrorCode = "PARSE"
	CodeMaxRetries       ErrorCode = "MAX_RETRIES"
	CodePersistence      ErrorCode = "PERSISTENCE"
	CodeSendOnly         ErrorCode = "SEND_ONLY"
	CodeNoServer         ErrorCode = "NO_SERVER"
	CodeNotAuthenticated ErrorCode = "NOT_AUTHENTICATED"
	CodeSessionExpired   ErrorCode = "SESSION_EXPIRED"
	CodePairingFailed    ErrorCode = "PAIRING_FAILED"
	CodeUnreachable      ErrorCode = "SERVER_UNREACHABLE"
	CodeInvalidCron      ErrorCode = "INVALID_CRON"
	CodeCircuitOpen      ErrorCode = "CIRCUIT_OPEN"
	CodeRequestFailed    ErrorCode = "REQUEST_FAILED"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeEncryption       ErrorCode = "ENCRYPTION"
	CodeDecryption       ErrorCode = "DECRYPTION"

	// Subsystem-specific codes used by subSystemCodeMap.
	CodeChatConnection ErrorCode = "CHAT_CONNECTION"
	CodeFeedConnection ErrorCode = "FEED_CONNECTION"
	CodeServerNotFound ErrorCode = "SERVER_NOT_FOUND"
	CodeServerExists   ErrorCode = "SERVER_EXISTS"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:     CodeNotFound,
	ErrDuplicate:    CodeDuplicate,
	ErrTimeout:      CodeTimeout,
	ErrInvalidInput: CodeInvalidInput,

	ErrConnection:  CodeConnection,
	ErrParse:       CodeParse,
	ErrMaxRetries:  CodeMaxRetries,
	ErrPersistence: CodePersistence,
	ErrSendOnly:    CodeSendOnly,

	ErrNoServer:          CodeNoServer,
	ErrNotAuthenticated:  CodeNotAuthenticated,
	ErrSessionExpired:    CodeSessionExpired,
	ErrPairingFailed:     CodePairingFailed,
	ErrServerUnreachable: CodeUnreachable,
	ErrInvalidCron:       CodeInvalidCron,
	ErrCircuitOpen:       CodeCircuitOpen,
	ErrRequestFailed:     CodeRequestFailed,
	ErrConfigLoad:        CodeConfigLoad,
	ErrEncryption:        CodeEncryption,
	ErrDecryption:        CodeDecryption,
}

// subSystemCodeMap maps (sentinel, subsystem) pairs to specific ErrorCodes.
var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrConnection: {
		"chat": CodeChatConnection,
		"feed": CodeFeedConnection,
	},
	ErrNotFound: {
		"servers": CodeServerNotFound,
	},
	ErrDuplicate: {
		"servers": CodeServerExists,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
// If SubSystem is set, checks the subSystemCodeMap for a specific code.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
