package rag

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a question asked by the user.
	RoleUser Role = "user"
	// RoleAssistant marks an answer produced by the assistant.
	RoleAssistant Role = "assistant"
)

// DefaultK is the number of chunks retrieved per question when none is configured.
const DefaultK = 4

// Document is a raw document handed to a session for indexing.
type Document struct {
	// Name is the file name; its extension selects the text extractor.
	Name string
	// Data is the raw file content.
	Data []byte
}

// Chunk is a contiguous passage of the concatenated source text.
// Chunks are created by the chunker and never mutated afterwards.
type Chunk struct {
	// Index is the insertion ordinal of the chunk (starts at 0).
	Index int `json:"index"`
	// Text is the exact passage text.
	Text string `json:"text"`
	// Offset is the rune offset of Text in the concatenated source text.
	Offset int `json:"offset"`
}

// Vector is an embedding produced by an Embedder.
type Vector []float32

// Match is a chunk returned by a similarity search together with its score.
type Match struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is a list of matches ranked by descending similarity.
type RetrievalResult []Match

// Texts returns the chunk texts in ranked order.
func (r RetrievalResult) Texts() []string {
	texts := make([]string, len(r))
	for i, m := range r {
		texts[i] = m.Chunk.Text
	}
	return texts
}

// Turn is a single entry of the conversation history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message is a chat message sent to the language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt holds everything a grounded answer is generated from.
type Prompt struct {
	// Context contains the retrieved chunk texts in ranked order.
	Context []string
	// History is the conversation so far.
	History []Turn
	// Question is the question as the user asked it.
	Question string
}
