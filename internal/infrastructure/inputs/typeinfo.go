package inputs

// InputTypeInfo describes an input type and how its envelope is recognised.
// Returned by Decoder.TypeInfo() and exposed via GET /inputs/types.
type InputTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Detection   string `json:"detection"`
	Example     string `json:"example,omitempty"`
}
