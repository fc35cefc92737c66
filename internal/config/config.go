package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by LOANDESK_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("LOANDESK_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func ServerPort() int {
	return envInt("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func RedisAddr() string {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return "localhost:6379"
	}
	return addr
}

func RedisPassword() string {
	return os.Getenv("REDIS_PASSWORD")
}

func RedisDB() int {
	return envInt("REDIS_DB", 0)
}

// SessionTTL is how long an applicant session lives in Redis.
func SessionTTL() time.Duration {
	return envDuration("SESSION_TTL", time.Hour)
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured text-generation provider.
// Valid values: openai, anthropic, gemini, cerebras, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// GatingModelPath points at the JSON parameter file for the gating
// classifier. Empty means the classifier is unavailable and routing relies
// on the guardrails and the arbiter fallback.
func GatingModelPath() string {
	return os.Getenv("GATING_MODEL_PATH")
}

// ConfidenceThreshold is the arbiter's trust cutoff for classifier output.
func ConfidenceThreshold() float64 {
	return envFloat("CONFIDENCE_THRESHOLD", 0.6)
}

// FallbackConfidence is reported when the arbiter substitutes the fixed
// status table for a low-confidence classification.
func FallbackConfidence() float64 {
	return envFloat("FALLBACK_CONFIDENCE", 0.75)
}

// RiskThresholdHigh and RiskThresholdLow bound guardrail rule (e): a
// pending applicant at either extreme of the heuristic risk score routes
// straight to verification.
func RiskThresholdHigh() float64 {
	return envFloat("RISK_THRESHOLD_HIGH", 0.7)
}

func RiskThresholdLow() float64 {
	return envFloat("RISK_THRESHOLD_LOW", 0.3)
}

// IncomeTolerance is the relative band within which declared and historical
// income are treated as consistent.
func IncomeTolerance() float64 {
	return envFloat("INCOME_TOLERANCE", 0.2)
}

// DBRRejectThreshold is the guard ceiling on debt-to-burden ratio, percent.
func DBRRejectThreshold() float64 {
	return envFloat("DBR_REJECT_THRESHOLD", 60)
}

// MinCreditScore is the guard floor on the credit-score proxy.
func MinCreditScore() int {
	return envInt("MIN_CREDIT_SCORE", 650)
}

// LoanTermMonths and LoanFlatRate parameterize the assumed repayment plan
// used for the DBR computation.
func LoanTermMonths() int {
	return envInt("LOAN_TERM_MONTHS", 84)
}

func LoanFlatRate() float64 {
	return envFloat("LOAN_FLAT_RATE", 0.03)
}

// BaselineIncome substitutes for income when neither the profile nor the
// history carries one, so the DBR stays computable.
func BaselineIncome() int64 {
	return int64(envInt("BASELINE_INCOME", 60000))
}

// ConsultFieldCutoff: with at most this many filled fields and a consult
// keyword, the clarification stage answers in consult mode. Heuristic, not
// load-bearing.
func ConsultFieldCutoff() int {
	return envInt("CONSULT_FIELD_CUTOFF", 2)
}

// GenerateTimeout bounds one text-generation call.
func GenerateTimeout() time.Duration {
	return envDuration("GENERATE_TIMEOUT", 20*time.Second)
}

// EmbedTimeout bounds one embedding call.
func EmbedTimeout() time.Duration {
	return envDuration("EMBED_TIMEOUT", 10*time.Second)
}

// StoreTimeout bounds one history/case store operation.
func StoreTimeout() time.Duration {
	return envDuration("STORE_TIMEOUT", 5*time.Second)
}

// RateLimitRPS returns requests per second limit.
func RateLimitRPS() float64 {
	rps := envFloat("RATE_LIMIT_RPS", 100)
	if rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
func RateLimitBurst() int {
	burst := envInt("RATE_LIMIT_BURST", 20)
	if burst <= 0 {
		return 20
	}
	return burst
}

// APIKey is the static bearer key guarding the /v1 routes. Empty disables
// auth, for local runs.
func APIKey() string {
	return os.Getenv("LOANDESK_API_KEY")
}

// LogLevel returns the log level (debug, info, warn, error).
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
