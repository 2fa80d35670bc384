package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
)

type User struct {
	Id     string
	Name   string
	Avatar string
}
