// Package campaign implements the Campaign service: status transitions and
// lookups used by the scheduler and the (out-of-scope) CRUD surface.
//
// Layering rule: this package never imports internal/repository/postgres or
// net/http. It declares the Repository interface it needs; the postgres
// package implements it. Domain structs carry no db or http types.
package campaign
