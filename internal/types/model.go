package types

// ModelSource identifies which backend serves a model: a local Ollama
// instance, a remote OpenAI-compatible API, or Aliyun DashScope.
type ModelSource string

const (
	ModelSourceLocal  ModelSource = "local"
	ModelSourceRemote ModelSource = "remote"
	ModelSourceAliyun ModelSource = "aliyun"
)

// ModelType identifies the role a configured model plays.
type ModelType string

const (
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeRerank    ModelType = "rerank"
	ModelTypeChat      ModelType = "chat"
)

// ChatResponse is one non-streamed chat completion (internal model layer,
// one level below interfaces.LLMClient).
type ChatResponse struct {
	Content string `json:"content"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ChatStreamResponse is one fragment of a streamed chat completion
// (internal model layer).
type ChatStreamResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}
