package config

const (
	defaultDataDir   = "~/.local/share/litsieve"
	defaultOutputDir = "~/.local/share/litsieve/outputs"
	defaultCacheDir  = "~/.cache/litsieve/responses"
	defaultLogDir    = "~/.local/share/litsieve/logs"

	defaultPrimaryName      = "groq"
	defaultPrimaryBaseURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultPrimaryModel     = "llama-3.3-70b-versatile"
	defaultPrimaryKeyEnv    = "GROQ_API_KEY"
	defaultFallbackName     = "together"
	defaultFallbackBaseURL  = "https://api.together.xyz/v1/chat/completions"
	defaultFallbackModel    = "meta-llama/Llama-3.3-70B-Instruct-Turbo"
	defaultFallbackKeyEnv   = "TOGETHER_API_KEY"
	defaultProviderTimeout  = 30
	// Matches the primary free tier of roughly 30 requests per minute.
	defaultPrimaryIntervalMS = 2100

	defaultRetryCooldownSeconds  = 60
	defaultRetryFailureThreshold = 3

	defaultTemperature = 0.0
	defaultTopP        = 1.0
	defaultMaxTokens   = 512

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			CacheDir:  defaultCacheDir,
			LogDir:    defaultLogDir,
		},
		Providers: Providers{
			Primary: Provider{
				Name:           defaultPrimaryName,
				BaseURL:        defaultPrimaryBaseURL,
				Model:          defaultPrimaryModel,
				APIKeyEnv:      defaultPrimaryKeyEnv,
				TimeoutSeconds: defaultProviderTimeout,
				MinIntervalMS:  defaultPrimaryIntervalMS,
			},
			Fallback: Provider{
				Name:           defaultFallbackName,
				BaseURL:        defaultFallbackBaseURL,
				Model:          defaultFallbackModel,
				APIKeyEnv:      defaultFallbackKeyEnv,
				TimeoutSeconds: defaultProviderTimeout,
			},
		},
		Retry: Retry{
			CooldownSeconds:  defaultRetryCooldownSeconds,
			FailureThreshold: defaultRetryFailureThreshold,
		},
		Inference: map[string]Inference{
			"triage":        {Temperature: 0.0, TopP: 1.0, MaxTokens: 256},
			"extraction":    {Temperature: 0.0, TopP: 1.0, MaxTokens: 1024},
			"summarization": {Temperature: 0.3, TopP: 0.9, MaxTokens: 512},
		},
		Triage: Triage{
			Criteria: []string{
				"Describes an AI-based educational tool or intelligent tutoring system",
				"Employs a large language model as a central component of the system",
				"Reports an empirical evaluation or a functional prototype",
			},
		},
		CrossValidation: CrossValidation{
			SynonymCriteria: []string{
				"Presents an AI-powered educational tool or adaptive learning system",
				"Uses a large language model as a core element of the system",
				"Reports experimental assessment or working prototype",
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
