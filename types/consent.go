package types

// ConsentForm is a generated consent form draft. Content is an HTML fragment.
type ConsentForm struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ConsentFormRequest struct {
	Prompt string `json:"prompt"`
}

type ConsentFormResponse struct {
	Success bool        `json:"success"`
	Form    ConsentForm `json:"form"`
}
