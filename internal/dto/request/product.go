package request

// Price and stock bounds follow the NUMERIC(12,2) and INTEGER columns.
type ProductRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Description *string  `json:"description,omitempty"`
	Price       float64  `json:"price" validate:"gte=0,lte=9999999999.99"`
	Image       *string  `json:"image,omitempty"`
	Category    string   `json:"category" validate:"max=100"`
	Stock       int      `json:"stock" validate:"gte=0,lte=2147483647"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type ProductUpdateRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0,lte=9999999999.99"`
	Image       *string  `json:"image,omitempty"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Stock       *int     `json:"stock,omitempty" validate:"omitempty,gte=0,lte=2147483647"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// ProductFilterRequest is parsed from the query string; tags name the
// query parameters.
type ProductFilterRequest struct {
	PaginatedRequest
	Keyword   string   `json:"keyword"`
	Category  string   `json:"category"`
	MinPrice  *float64 `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice  *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	MinRating *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	SortBy    string   `json:"sortBy" validate:"omitempty,oneof=newest price-asc price-desc name-asc name-desc popular"`
}
