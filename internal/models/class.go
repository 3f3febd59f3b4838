package models

import "time"

// Class is a teacher-owned group students join with a class code.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PublicView hides the join code from non-owners.
func (c Class) PublicView() Class {
	c.Code = ""
	return c
}
