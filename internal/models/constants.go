package models

const (
	UploadSuccessMessage = "Document uploaded and processed successfully"
	NoDocumentsMessage   = "No documents uploaded yet!"

	// KeywordSearchLimit caps /query results.
	KeywordSearchLimit = 5
	ContextSeparator   = "\n\n"
)

var (
	// QAPromptTemplate is a Go template with the retrieved chunks in .context.
	QAPromptTemplate = `You are a helpful assistant. Use the following pieces of context from the uploaded document to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`
)
