package insightdto

// Error codes presentation layers can branch on.
const (
	CodeProcessSpawn     = "engine_spawn_failed"
	CodeProtocolTimeout  = "engine_timeout"
	CodeEngineCrash      = "engine_crashed"
	CodeIllegalMove      = "illegal_move"
	CodeConcurrentSearch = "search_busy"
	CodeInternal         = "internal"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "insight service error"
}
