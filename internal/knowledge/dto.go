package knowledge

// DocumentRequest creates or edits document metadata.
type DocumentRequest struct {
	Name        string   `json:"name" validate:"required,max=160"`
	Category    string   `json:"category" validate:"required,max=64"`
	Type        string   `json:"type" validate:"required,max=16"`
	Size        *int64   `json:"size" validate:"omitempty,min=0"`
	UploadedBy  string   `json:"uploadedBy" validate:"max=120"`
	Description string   `json:"description" validate:"max=1000"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=40"`
}

// VersionRequest records a new revision of a document.
type VersionRequest struct {
	UploadedBy string `json:"uploadedBy" validate:"max=120"`
	Size       int64  `json:"size" validate:"min=0"`
	Note       string `json:"note" validate:"max=500"`
}

// NodeRequest creates a node. ID is optional on create.
type NodeRequest struct {
	ID         string            `json:"id" validate:"omitempty,max=64"`
	Label      string            `json:"label" validate:"required,max=120"`
	Type       string            `json:"type" validate:"required,max=40"`
	Properties map[string]string `json:"properties"`
}

// EdgeRequest creates an edge.
type EdgeRequest struct {
	Source string  `json:"source" validate:"required"`
	Target string  `json:"target" validate:"required"`
	Type   string  `json:"type" validate:"required,max=40"`
	Weight float64 `json:"weight" validate:"min=0"`
}
