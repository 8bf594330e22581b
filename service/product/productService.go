package productsvc

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ARUSH-R/rent-and-return/model"
	repo "github.com/ARUSH-R/rent-and-return/repository/product"
)

var (
	ErrNotFound   = errors.New("product not found")
	ErrBadPayload = errors.New("invalid payload")
)

type Repo interface {
	Create(ctx context.Context, p *model.Product) error
	ByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context, onlyAvailable bool) ([]model.Product, error)
	SearchByName(ctx context.Context, keyword string) ([]model.Product, error)
	ByCategory(ctx context.Context, category string) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, id int64, updatedBy string) error
	Restock(ctx context.Context, id int64, stock int64, updatedBy string) error
}

type Service interface {
	Create(ctx context.Context, p *model.Product) error
	ByID(ctx context.Context, id int64) (*model.Product, error)
	List(ctx context.Context, onlyAvailable bool) ([]model.Product, error)
	Search(ctx context.Context, keyword string) ([]model.Product, error)
	ByCategory(ctx context.Context, category string) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, id int64, updatedBy string) error

	// Restock sets the absolute stock count. This is the only path by which
	// a returned product re-enters circulation.
	Restock(ctx context.Context, id int64, stock int64, updatedBy string) error
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, p *model.Product) error {
	if p.Name == "" || p.Category == "" || p.PricePerDay.LessThan(decimal.Zero) || p.Stock < 0 {
		return ErrBadPayload
	}
	return s.r.Create(ctx, p)
}

func (s *service) ByID(ctx context.Context, id int64) (*model.Product, error) {
	p, err := s.r.ByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *service) List(ctx context.Context, onlyAvailable bool) ([]model.Product, error) {
	return s.r.List(ctx, onlyAvailable)
}

func (s *service) Search(ctx context.Context, keyword string) ([]model.Product, error) {
	return s.r.SearchByName(ctx, keyword)
}

func (s *service) ByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return s.r.ByCategory(ctx, category)
}

func (s *service) Update(ctx context.Context, p *model.Product) error {
	if p.Name == "" || p.Category == "" || p.PricePerDay.LessThan(decimal.Zero) {
		return ErrBadPayload
	}
	err := s.r.Update(ctx, p)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *service) SoftDelete(ctx context.Context, id int64, updatedBy string) error {
	err := s.r.SoftDelete(ctx, id, updatedBy)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *service) Restock(ctx context.Context, id int64, stock int64, updatedBy string) error {
	if stock < 0 {
		return ErrBadPayload
	}
	err := s.r.Restock(ctx, id, stock, updatedBy)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
