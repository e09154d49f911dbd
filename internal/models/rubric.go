package models

// Competency groups conducts under a single uppercase letter id.
type Competency struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Conducts    []Conduct `json:"conducts"`
}

// Conduct is a single observable behavior scored independently within a
// competency. IDs follow the competency-letter + index pattern ("B1").
type Conduct struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	ExampleEvidence string `json:"example_evidence"`
}
