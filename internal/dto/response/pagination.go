package response

import "storefront/pkg/utils"

type PaginatedResponse[T any] struct {
	Items      []T            `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

type PaginationMeta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Pages       int   `json:"pages"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

func NewPaginatedResponse[T any](items []T, page, limit int, total int64) *PaginatedResponse[T] {
	if items == nil {
		items = []T{}
	}
	pages := utils.CalculateTotalPages(total, limit)

	return &PaginatedResponse[T]{
		Items: items,
		Pagination: PaginationMeta{
			Total:       total,
			Page:        page,
			Limit:       limit,
			Pages:       pages,
			HasNextPage: page < pages,
			HasPrevPage: page > 1,
		},
	}
}
