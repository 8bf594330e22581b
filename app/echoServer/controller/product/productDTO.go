package product

type CreateProductReq struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    *string `json:"image_url"`
	PricePerDay string  `json:"price_per_day" validate:"required"`
	Stock       int64   `json:"stock" validate:"gte=0"`
}

type UpdateProductReq struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	Category    string  `json:"category" validate:"required"`
	ImageURL    *string `json:"image_url"`
	PricePerDay string  `json:"price_per_day" validate:"required"`
}

type RestockReq struct {
	Stock int64 `json:"stock" validate:"gte=0"`
}
