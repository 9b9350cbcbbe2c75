package mcp

// SearchInput is the input of the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"full-text query; every word must occur in the document"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of documents, default 10"`
}

// SearchOutput is the output of the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Total   int                  `json:"total" jsonschema:"number of matching documents before the limit"`
}

// SearchResultOutput is one matching document.
type SearchResultOutput struct {
	ID        string `json:"id" jsonschema:"document id"`
	Score     int    `json:"score" jsonschema:"summed frequency of the query words"`
	Fragments []int  `json:"fragments" jsonschema:"page indexes containing a query word"`
}

// InboxListInput is the (empty) input of inbox_list.
type InboxListInput struct{}

// InboxListOutput is the output of inbox_list.
type InboxListOutput struct {
	Count int      `json:"count"`
	Docs  []string `json:"docs" jsonschema:"pending document ids, oldest upload first"`
}

// DocumentInput names one document.
type DocumentInput struct {
	ID string `json:"id" jsonschema:"64-character lowercase hex document id"`
}

// InboxEntryOutput is a pending document.
type InboxEntryOutput struct {
	ID         string            `json:"id"`
	Uploaded   string            `json:"uploaded" jsonschema:"RFC 3339 upload time"`
	Labels     []string          `json:"labels"`
	Properties map[string]string `json:"properties"`
}

// InboxArchiveInput files a pending document.
type InboxArchiveInput struct {
	ID         string            `json:"id" jsonschema:"64-character lowercase hex document id"`
	Labels     []string          `json:"labels,omitempty" jsonschema:"labels to attach"`
	Properties map[string]string `json:"properties,omitempty" jsonschema:"key/value properties to attach"`
}

// StatusOutput reports the result of a state transition.
type StatusOutput struct {
	ID     string `json:"id"`
	Status string `json:"status" jsonschema:"archived or deleted"`
}

// FragmentInput names one page of a document.
type FragmentInput struct {
	ID    string `json:"id" jsonschema:"64-character lowercase hex document id"`
	Index int    `json:"index" jsonschema:"zero-based page index"`
}

// FragmentOutput is one page's extracted text.
type FragmentOutput struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	HasText bool   `json:"has_text"`
	Text    string `json:"text,omitempty"`
	Size    int    `json:"size" jsonschema:"size of the page content in bytes"`
}
