// Package llmfactory creates LLM models of the configured providers
// (OpenAI, Anthropic, Google AI, Bedrock, Perplexity) and selects the model per assistant.
package llmfactory
