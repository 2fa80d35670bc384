package catalog

import "errors"

var (
	ErrItemNotFound = errors.New("catalog item not found")
)

type Episode struct {
	Id        string
	Slug      string
	Name      string
	Filename  string
	LinkEmbed string
	LinkM3U8  string
}

type Item struct {
	Id         string
	Name       string
	OriginName string
	PosterUrl  string
	Episodes   []Episode
}
