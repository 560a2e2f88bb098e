package store

import "time"

// Metadata is stored next to each artifact as <artifact>.json.
type Metadata struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Operation     string    `json:"operation"`
	Prompt        string    `json:"prompt"`
	RevisedPrompt string    `json:"revisedPrompt,omitempty"`
	Size          string    `json:"size"`
	Quality       string    `json:"quality"`
	Format        string    `json:"format"`
	Background    string    `json:"background"`
	Compression   *int      `json:"compression,omitempty"`
	ResponseID    string    `json:"responseId,omitempty"`
	SourceImage   string    `json:"sourceImage,omitempty"`
	Bytes         int       `json:"bytes"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Tags flattens the metadata into object tags for the mirror.
func (m Metadata) Tags() map[string]string {
	tags := map[string]string{
		"id":        m.ID,
		"operation": m.Operation,
		"size":      m.Size,
		"quality":   m.Quality,
		"format":    m.Format,
		"created":   m.CreatedAt.Format(time.RFC3339),
	}
	if m.ResponseID != "" {
		tags["response-id"] = m.ResponseID
	}
	return tags
}
