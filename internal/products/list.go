package product

import "github.com/angelmondragon/storepos-backend/pkg/pagination"

// ListProductsInput filters the catalog listing. Results are ordered by name.
type ListProductsInput struct {
	Category        *string
	Search          string
	IncludeInactive bool
	Pagination      pagination.Params
}

// ProductListResult is one page of products.
type ProductListResult struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}
