package rental

type CreateRentalReq struct {
	ProductID    int64 `json:"product_id" validate:"required,gt=0"`
	DurationDays int   `json:"duration_days" validate:"required"`
}

type ExtendRentalReq struct {
	ExtraDays int `json:"extra_days" validate:"required,gt=0"`
}
