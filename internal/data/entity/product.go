package entity

import "github.com/shopspring/decimal"

type Product struct {
	Base
	Name        string          `db:"name"`
	Description *string         `db:"description"`
	Price       decimal.Decimal `db:"price"`
	Image       *string         `db:"image"`
	Category    string          `db:"category"`
	Stock       int             `db:"stock"`
	Rating      float64         `db:"rating"`
}
