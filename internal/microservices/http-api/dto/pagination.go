package dto

import (
	"net/url"
	"strconv"
)

// PageQuery binds ?page=&page_size= with defaults.
type PageQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// PaginatedResponse wraps one page of any list endpoint. Next and Previous
// stay null until Link fills them from the request URL.
type PaginatedResponse[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`

	page     int
	pageSize int
}

// NewPaginatedResponse creates a paginated response; results are never null in JSON.
func NewPaginatedResponse[T any](results []T, count int64, page, pageSize int) *PaginatedResponse[T] {
	if results == nil {
		results = []T{}
	}
	return &PaginatedResponse[T]{Results: results, Count: count, page: page, pageSize: pageSize}
}

// Link sets next and previous to u with the page parameter swapped. Other
// query parameters are kept.
func (p *PaginatedResponse[T]) Link(u *url.URL) *PaginatedResponse[T] {
	p.Next, p.Previous = nil, nil
	if p.pageSize > 0 && int64(p.page)*int64(p.pageSize) < p.Count {
		p.Next = pageURL(u, p.page+1)
	}
	if p.page > 1 {
		p.Previous = pageURL(u, p.page-1)
	}
	return p
}

func pageURL(u *url.URL, page int) *string {
	next := *u
	q := next.Query()
	q.Set("page", strconv.Itoa(page))
	next.RawQuery = q.Encode()
	s := next.RequestURI()
	return &s
}

// MapSlice converts a slice of models with fn.
func MapSlice[M any, R any](items []M, fn func(*M) R) []R {
	out := make([]R, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}
