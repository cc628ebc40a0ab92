package models

// TitleGenre is the join row between a title and a genre.
type TitleGenre struct {
	TitleID int64 `json:"title_id" gorm:"primaryKey"`
	GenreID int64 `json:"genre_id" gorm:"primaryKey;index"`
}

func (TitleGenre) TableName() string {
	return "title_genres"
}
