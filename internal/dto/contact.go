package dto

// ContactCreate is the body of POST /contacts. Every field is optional.
type ContactCreate struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}
