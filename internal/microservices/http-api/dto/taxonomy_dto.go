package dto

import (
	"yamdb/internal/microservices/http-api/models"
)

// TaxonomyWriteDTO creates a category or a genre.
type TaxonomyWriteDTO struct {
	Name string `json:"name" binding:"required,max=256"`
	Slug string `json:"slug" binding:"required,max=50"`
}

// TaxonomyUpdateDTO is a partial edit of a category or a genre.
type TaxonomyUpdateDTO struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=256"`
	Slug *string `json:"slug" binding:"omitempty,min=1,max=50"`
}

type CategoryResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type GenreResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func FromModelToCategoryResponse(c *models.Category) CategoryResponse {
	return CategoryResponse{Name: c.Name, Slug: c.Slug}
}

func FromModelToGenreResponse(g *models.Genre) GenreResponse {
	return GenreResponse{Name: g.Name, Slug: g.Slug}
}
