package db

type Job struct {
	ID         string
	Status     string
	Request    string
	OutputFile string
	Pdfs       string
	Error      string
	CreatedAt  int64
	UpdatedAt  int64
}
