package storefront

import (
	"context"

	"golang.org/x/sync/singleflight"

	"storefront/internal/analytics"
	"storefront/internal/models"
	"storefront/internal/services/storeapi"
)

// Search replaces the category filter. A blank query lists everything.
func (s *Storefront) Search(ctx context.Context, query string) {
	s.mu.Lock()
	s.search = query
	s.category = ""
	seq := s.productSeq.next()
	s.mu.Unlock()

	products, err := s.store.SearchProducts(ctx, query)
	s.finishProductFetch(seq, products, err, "Error searching products")
}

// FilterCategory replaces the search. An empty category lists everything.
func (s *Storefront) FilterCategory(ctx context.Context, category string) {
	s.mu.Lock()
	s.category = category
	s.search = ""
	seq := s.productSeq.next()
	s.mu.Unlock()

	products, err := s.store.ListProductsByCategory(ctx, category)
	s.finishProductFetch(seq, products, err, "Error filtering products")
}

func (s *Storefront) ClearFilters(ctx context.Context) {
	s.mu.Lock()
	s.category = ""
	s.search = ""
	seq := s.productSeq.next()
	s.mu.Unlock()

	products, err := s.store.ListProducts(ctx)
	s.finishProductFetch(seq, products, err, "Error fetching products")
}

func (s *Storefront) finishProductFetch(seq uint64, products []models.Product, err error, what string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A 404 on a filtered list means nothing matched.
	if storeapi.IsNotFound(err) {
		products, err = []models.Product{}, nil
	}
	if err != nil {
		s.logger.Error("%s: %v", what, err)
		if seq > s.productSeq.applied {
			s.notice = &Notice{Kind: NoticeError, Message: "Could not load products. Please try again."}
		}
		return
	}
	s.applyProductsLocked(seq, products)
}

// ViewProduct opens the product page. view_item is pushed once per distinct product.
// Concurrent views of one product share a fetch that outlives any single
// caller's cancellation; a cancelled caller returns without touching state.
func (s *Storefront) ViewProduct(ctx context.Context, id models.ID) (*models.Product, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.productFetches.DoChan(id.String(), func() (interface{}, error) {
		return s.store.GetProduct(shared, id)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err

	s.mu.Lock()
	if err != nil {
		s.product = nil
		s.lastViewed = ""
		if storeapi.IsNotFound(err) {
			s.notice = &Notice{Kind: NoticeError, Message: "Product not found"}
		} else {
			s.logger.Error("Error fetching product: %v", err)
			s.notice = &Notice{Kind: NoticeError, Message: "Could not load the product. Please try again."}
		}
		s.mu.Unlock()
		return nil, err
	}

	product := *v.(*models.Product)
	s.product = &product
	track := s.lastViewed != product.ID
	s.lastViewed = product.ID
	s.mu.Unlock()

	if track {
		s.emit(ctx, analytics.EventViewItem, analytics.ItemPayload(&product, 1, s.visitorCode()))
	}
	return &product, nil
}

// CloseProduct goes back to the product list.
func (s *Storefront) CloseProduct() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.product = nil
	s.lastViewed = ""
}

func (s *Storefront) findProductLocked(id models.ID) *models.Product {
	if s.product != nil && s.product.ID == id {
		p := *s.product
		return &p
	}
	for _, p := range s.products {
		if p.ID == id {
			p := p
			return &p
		}
	}
	return nil
}
