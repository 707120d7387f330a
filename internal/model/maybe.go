package model

// Maybe is a tagged present/absent result for endpoints where 404 is a valid
// success state (profile before onboarding, share card before eligibility).
// Absence is data, never an error used for control flow.
type Maybe[T any] struct {
	Value   T
	Present bool
}

func Found[T any](v T) Maybe[T] { return Maybe[T]{Value: v, Present: true} }

func Absent[T any]() Maybe[T] { return Maybe[T]{} }
