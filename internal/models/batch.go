package models

import "time"

// Batch groups students under one training cohort.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Course    string    `db:"course" json:"course"`
	Year      int       `db:"year" json:"year"`
	Active    bool      `db:"active" json:"active"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	Search   string
	Year     *int
	Active   *bool
	Page     int
	PageSize int
}

// BatchDetail carries a batch with its student headcount.
type BatchDetail struct {
	Batch
	StudentCount int `db:"student_count" json:"student_count"`
}
