package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonConfigMissingKey ReasonCode = "config_missing_key"

	ReasonSTTConnect   ReasonCode = "stt_connect"
	ReasonSTTSend      ReasonCode = "stt_send"
	ReasonSTTReconnect ReasonCode = "stt_reconnect"
	ReasonSTTClosed    ReasonCode = "stt_closed"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMAuth      ReasonCode = "llm_auth"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"
	ReasonLLMNetwork   ReasonCode = "llm_network"

	ReasonSearchQuery ReasonCode = "search_query"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonTransportSend ReasonCode = "transport_send"
	ReasonPipeline      ReasonCode = "pipeline"
)
