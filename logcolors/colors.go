package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogTLS    = Green + "[TLS]" + Reset
)

// Request handling log prefixes
const (
	LogRequest   = Purple + "[Request]" + Reset
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// Upstream log prefixes
const (
	LogToken      = Cyan + "[Token]" + Reset
	LogTokenCache = Blue + "[Token:Cache]" + Reset
	LogNowPlaying = Green + "[NowPlaying]" + Reset
	LogAuthError  = Purple + "[Auth Error]" + Reset
	LogWarning    = Red + "[Warning]" + Reset
)

// Alerting log prefixes
const (
	LogNotifier = Yellow + "[Notifier]" + Reset
)

// Client side log prefixes
const (
	LogSetup = Cyan + "[Setup]" + Reset
	LogWatch = Green + "[Watch]" + Reset
	LogPoll  = Blue + "[Poll]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}
