package search

// Request represents a hybrid search query.
type Request struct {
	// Query is the search text.
	Query string `json:"query"`
	// FolderIDs restricts the search to specific folders. If empty, searches all folders.
	FolderIDs []string `json:"folder_ids,omitempty"`
	// TopK optionally caps the number of returned hits. Defaults to 8, max 50.
	TopK int `json:"top_k,omitempty"`
	// Lambda tunes the relevance/diversity trade-off in (0,1]; lower values
	// favor diversity. Defaults to 0.3 when omitted or non-positive.
	Lambda float64 `json:"lambda,omitempty"`
}

// Hit represents one retrieved chunk.
type Hit struct {
	// ID is the vector point ID of the chunk.
	ID string `json:"id"`
	// Score is the fused relevance score.
	Score float64 `json:"score"`
	// Text is the chunk text.
	Text string `json:"text"`
	// Title is the document title the chunk came from.
	Title string `json:"title,omitempty"`
	// FolderID identifies the sync folder containing the chunk.
	FolderID string `json:"folder_id"`
	// RelPath is the file path relative to the folder root.
	RelPath string `json:"rel_path"`
	// FilePath is the absolute path of the source file.
	FilePath string `json:"file_path,omitempty"`
	// ChunkIndex is the chunk ordinal within the file.
	ChunkIndex int `json:"chunk_index"`
	// StartLine and EndLine are 1-based source lines covered by the chunk.
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`
}

// Response represents the result of a hybrid search.
type Response struct {
	// Hits are the diversified results in selection order.
	Hits []Hit `json:"hits"`
}
