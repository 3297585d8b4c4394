// Package sample holds the entities the jbulk command loads.
package sample

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

type Address struct {
	Street string
	City   string
	Zip    *string
}

type Customer struct {
	ID    uuid.UUID `jorm:"pk"`
	Email string
}

// Attributes is stored as one msgpack column.
type Attributes struct {
	Channel string
	Gift    bool
}

type Order struct {
	ID         uuid.UUID `jorm:"pk generated:add"`
	Number     string    `validate:"required"`
	Total      float64   `validate:"gte=0"`
	Discount   *float64
	Paid       bool        `jorm:"converter:bool_int"`
	Tags       []string    `jorm:"converter:json"`
	Attributes *Attributes `jorm:"converter:msgpack"`
	Shipping   *Address    `jorm:"owned prefix:ship_"`
	Customer   *Customer
	Meta       map[string]string `jorm:"-"`
	CreatedAt  time.Time         `jorm:"auto_time"`
}

func (Order) TableName() string {
	return "orders"
}

var cities = []string{"Springfield", "Shelbyville", "Ogdenville", "North Haverbrook"}

// Orders returns n generated orders. The same seed gives the same orders,
// except for the generated keys and timestamps.
func Orders(n int, seed uint64) []*Order {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]*Order, n)
	for i := range out {
		o := &Order{
			Number: fmt.Sprintf("SO-%06d", i+1),
			Total:  float64(r.IntN(100000)) / 100,
			Paid:   r.IntN(2) == 0,
			Tags:   []string{"bulk"},
		}
		if r.IntN(4) == 0 {
			d := float64(r.IntN(500)) / 100
			o.Discount = &d
		}
		if r.IntN(3) > 0 {
			o.Shipping = &Address{
				Street: fmt.Sprintf("%d Main St", r.IntN(900)+100),
				City:   cities[r.IntN(len(cities))],
			}
		}
		if r.IntN(5) == 0 {
			o.Attributes = &Attributes{Channel: "web", Gift: r.IntN(2) == 0}
		}
		out[i] = o
	}
	return out
}
