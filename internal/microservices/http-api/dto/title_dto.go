package dto

import (
	"yamdb/internal/microservices/http-api/models"
)

// TitleWriteDTO is the create shape: category and genres are referenced by slug.
type TitleWriteDTO struct {
	Name        string   `json:"name" binding:"required,max=256"`
	Year        int      `json:"year" binding:"required"`
	Description *string  `json:"description"`
	Category    *string  `json:"category" binding:"omitempty,max=50"`
	Genre       []string `json:"genre" binding:"omitempty,dive,max=50"`
}

// TitleUpdateDTO is a partial update. An empty category slug clears the
// category; a present genre list replaces all genres.
type TitleUpdateDTO struct {
	Name        *string   `json:"name" binding:"omitempty,min=1,max=256"`
	Year        *int      `json:"year"`
	Description *string   `json:"description"`
	Category    *string   `json:"category" binding:"omitempty,max=50"`
	Genre       *[]string `json:"genre" binding:"omitempty,dive,max=50"`
}

// TitleFilterQuery binds the list filters.
type TitleFilterQuery struct {
	PageQuery
	Name     string `form:"name"`
	Year     int    `form:"year"`
	Category string `form:"category"`
	Genre    string `form:"genre"`
}

// TitleResponse is the read shape: rating is derived, category and genres are expanded.
type TitleResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Year        int               `json:"year"`
	Rating      *float64          `json:"rating"`
	Description *string           `json:"description"`
	Genre       []GenreResponse   `json:"genre"`
	Category    *CategoryResponse `json:"category"`
}

func FromModelToTitleResponse(t *models.Title) TitleResponse {
	resp := TitleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Rating:      t.Rating,
		Description: t.Description,
		Genre:       MapSlice(t.Genres, FromModelToGenreResponse),
	}
	if t.Category != nil {
		c := FromModelToCategoryResponse(t.Category)
		resp.Category = &c
	}
	return resp
}
