// Package llm wraps the Amazon Bedrock runtime for the command-line tools in
// this repository.
//
// Two call shapes are supported. Converse is driven by the Conversation type,
// which holds the whole conversation state as plain data so a caller can keep
// it between turns. InvokeModel is driven by Adapters that translate a unified
// Request into a model family's native JSON body (Amazon Nova, Anthropic,
// OpenAI) and back. Nova Canvas image generation and foundation model listing
// sit alongside as single-call helpers.
package llm
