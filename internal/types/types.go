package types

type JoinRequest struct {
	Name string `json:"name"`
}

type ErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}
