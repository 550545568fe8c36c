package models

import "time"

// Document is one uploaded file. It only lives for the duration of an upload.
type Document struct {
	ID         string
	Filename   string
	Format     string
	Data       []byte
	UploadedAt time.Time
}

// Chunk represents a parsed chunk with its position in the document
type Chunk struct {
	Ordinal int
	Content string
}

// Source is a retrieved chunk together with its similarity to the question.
type Source struct {
	Ordinal    int     `json:"ordinal"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Sources  []Source `json:"sources,omitempty"`
}
