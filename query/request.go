// Package query implements the read-only route query engine (spec §4.H):
// city resolution, Dijkstra shortest path over the hot graph store, segment
// hydration, k-alternatives, and risk annotation. The engine never returns
// an error to its caller — every failure path produces a Response with
// success=false and a machine-readable code, per spec §7's query path
// contract.
package query

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Request is the validated input of a single route query (spec §4.H).
type Request struct {
	FromCity   string    `json:"fromCity" validate:"required"`
	ToCity     string    `json:"toCity" validate:"required"`
	Date       time.Time `json:"date" validate:"required"`
	Passengers int       `json:"passengers" validate:"required,min=1,max=100"`
}

var validate = validator.New()

// Validate checks Request against the declared domain: non-empty cities,
// a parseable date, and passengers in [1,100] (spec §8 boundary behaviors).
func (r Request) Validate() error {
	return validate.Struct(r)
}
