package index

// PostingList is the insertion-ordered list of post IDs recorded for a term.
// It may contain duplicates until the index is optimized.
type PostingList []int64

type TermEntry struct {
	Term     string      `json:"term"`
	Postings PostingList `json:"postings"`
}

// Stats summarises the shape of the index.
type Stats struct {
	IndexSize           int     `json:"index_size"`
	TotalWords          int     `json:"total_words"`
	TotalPostings       int     `json:"total_postings"`
	AveragePostsPerWord float64 `json:"average_posts_per_word"`
	DocsIndexed         int     `json:"docs_indexed"`
}
