// Package pricing resolves variant selections, clamps quantities against
// stock, validates vouchers and computes order totals.
package pricing

import "github.com/kicksvault/storefront/internal/domain"

// Resolution is the effective price, stock and image for a product selection
type Resolution struct {
	Price      domain.Money
	Stock      int
	SKU        string
	Image      string
	VariantKey string
	ColorKey   string
	// Complete is false when some variant group has no valid selection.
	// Price, Stock and Image then fall back to the product's base values.
	Complete bool
	Missing  []string
}

// SelectedVariant converts the resolution into the cart line's variant
// snapshot. It returns nil for products without variant groups.
func (r Resolution) SelectedVariant() *domain.SelectedVariant {
	if !r.Complete || r.VariantKey == "" {
		return nil
	}
	return &domain.SelectedVariant{
		Name:  r.VariantKey,
		Price: r.Price,
		Stock: r.Stock,
		SKU:   r.SKU,
		Image: r.Image,
	}
}

// Resolve picks the effective values for a product given the chosen option per
// variant group. Options carry absolute values. When every group is selected,
// price, stock, SKU and image come from the option of the last group in
// product order, while the line identity uses the first group's option name.
// The color is an independent identity axis, not a variant group.
func Resolve(product domain.Product, selections map[string]string, color string) Resolution {
	res := Resolution{
		Price:    product.Price,
		Stock:    product.Stock,
		Image:    product.Image,
		ColorKey: color,
		Complete: true,
	}
	if len(product.Variants) == 0 {
		return res
	}

	var (
		last    domain.VariantOption
		primary string
	)
	for i, group := range product.Variants {
		opt, ok := group.Option(selections[group.Name])
		if !ok {
			res.Missing = append(res.Missing, group.Name)
			continue
		}
		if i == 0 {
			primary = opt.Name
		}
		last = opt
	}

	if len(res.Missing) > 0 {
		res.Complete = false
		return res
	}

	res.Price = last.Price
	res.Stock = last.Stock
	res.SKU = last.SKU
	if last.Image != "" {
		res.Image = last.Image
	}
	res.VariantKey = primary
	return res
}
