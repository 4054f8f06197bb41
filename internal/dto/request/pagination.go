package request

import "storefront/pkg/utils"

type PaginatedRequest struct {
	Page  int `json:"page" validate:"min=1"`
	Limit int `json:"limit" validate:"min=1,max=100"`
}

func (p PaginatedRequest) Offset() int {
	return utils.CalculateOffset(p.Page, p.PerPage())
}

func (p PaginatedRequest) PerPage() int {
	if p.Limit < 1 {
		return utils.DefaultPageLimit
	}
	if p.Limit > utils.MaxPageLimit {
		return utils.MaxPageLimit
	}
	return p.Limit
}
