package model

import "time"

type Organisation struct {
	ID           int64     `db:"id"`
	Name         string    `db:"name"`
	Address      string    `db:"address"`
	ContactName  string    `db:"contact_name"`
	ContactEmail string    `db:"contact_email"`
	ContactPhone string    `db:"contact_phone"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
