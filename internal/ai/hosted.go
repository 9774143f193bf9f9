package ai

import "time"

// Built-in OpenAI-compatible backends. Each differs only in endpoint, default
// model and timeout.
func init() {
	Register("huggingface", chatFactory(chatDefaults{
		baseURL: "https://router.huggingface.co/v1",
		model:   "HuggingFaceH4/zephyr-7b-beta",
		timeout: 60 * time.Second,
		topP:    floatPtr(0.9),
	}))
	Register("deepseek", chatFactory(chatDefaults{
		baseURL: "https://api.deepseek.com",
		model:   "deepseek-chat",
		timeout: 60 * time.Second,
	}))
	Register("groq", chatFactory(chatDefaults{
		baseURL: "https://api.groq.com/openai/v1",
		model:   "llama-3.1-8b-instant",
		timeout: 30 * time.Second,
	}))
	Register("openai", chatFactory(chatDefaults{
		baseURL: "https://api.openai.com/v1",
		model:   "gpt-4o-mini",
		timeout: 60 * time.Second,
	}))
	Register("openrouter", chatFactory(chatDefaults{
		baseURL: "https://openrouter.ai/api/v1",
		model:   "openrouter/auto",
		timeout: 60 * time.Second,
	}))
	// any server speaking the chat completions protocol without a key,
	// e.g. llama.cpp or vLLM
	Register("openai_compatible", chatFactory(chatDefaults{
		baseURL: "http://localhost:8000/v1",
		timeout: 120 * time.Second,
		keyless: true,
	}))
}
