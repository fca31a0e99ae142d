package models

import "time"

// Article is a board post
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	WriterID  uint      `json:"writer_id" gorm:"index;not null"`
	Writer    User      `json:"-" gorm:"foreignKey:WriterID;constraint:OnDelete:CASCADE"`
	Title     string    `json:"title" gorm:"size:100;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	Likes     []User    `json:"-" gorm:"many2many:article_likes;constraint:OnDelete:CASCADE"`
	Comments  []Comment `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment belongs to an article
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ArticleID uint      `json:"article_id" gorm:"index;not null"`
	WriterID  uint      `json:"writer_id" gorm:"index;not null"`
	Writer    User      `json:"-" gorm:"foreignKey:WriterID;constraint:OnDelete:CASCADE"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
