package tts

import (
	"github.com/lexiqai/tts-gateway/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LegacyTTSSessionID:         "test-session",
		LegacyTTSUserAgent:         "test-agent/1.0",
		GenerativeTTSUserAgent:     "test-browser/1.0",
		DeepgramModel:              "aura-asteria-en",
		DeepgramSampleRate:         24000,
		ProviderTimeout:            5,
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: 60,
	}
}
