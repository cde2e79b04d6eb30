package model

type FieldType string

const (
	FieldText   FieldType = "text"
	FieldURL    FieldType = "url"
	FieldDate   FieldType = "date"
	FieldNumber FieldType = "number"
	FieldArray  FieldType = "array"
)

// FieldDescriptor describes one field the caller wants extracted. Names are
// unique within a job; the descriptor shapes both the extraction prompt and
// the CSV export headers.
type FieldDescriptor struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}
