package dto

// CursorPageRequest paginación por cursor (keyset) para listados; sin OFFSET.
type CursorPageRequest struct {
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// Normalize aplica el tamaño por defecto y el máximo.
func (p *CursorPageRequest) Normalize(def, max int) {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
}

// CursorPage metadatos de página en respuestas. NextCursor vacío = no hay más.
type CursorPage struct {
	Limit      int    `json:"limit"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
