package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryRef names a category by its display name. Products keep the name,
// not an id, so renaming a category does not touch existing products.
type CategoryRef string

type Product struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Price       float64            `json:"price" bson:"price"`
	Category    CategoryRef        `json:"category" bson:"category"`
	Subcategory string             `json:"subcategory,omitempty" bson:"subcategory,omitempty"`
	Variants    []Variant          `json:"variants" bson:"variants"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type Variant struct {
	Color string      `json:"color" bson:"color"`
	Sizes []SizeStock `json:"sizes" bson:"sizes"`
}

type SizeStock struct {
	Size  string `json:"size" bson:"size"`
	Stock int    `json:"stock" bson:"stock"`
}

// FindSize returns the first variant matching color and, within it, the
// first size entry matching size. Either index is -1 when absent.
func (p *Product) FindSize(color, size string) (variantIdx, sizeIdx int) {
	for i := range p.Variants {
		if p.Variants[i].Color != color {
			continue
		}
		for j := range p.Variants[i].Sizes {
			if p.Variants[i].Sizes[j].Size == size {
				return i, j
			}
		}
		return i, -1
	}
	return -1, -1
}

// Clone returns a deep copy, so callers can mutate variants freely.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Variants = make([]Variant, len(p.Variants))
	for i, v := range p.Variants {
		cp.Variants[i] = Variant{Color: v.Color, Sizes: append([]SizeStock(nil), v.Sizes...)}
	}
	return &cp
}
