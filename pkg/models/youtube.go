package models

import "time"

// YouTubeVideo is a cached search or related-video result
type YouTubeVideo struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	YouTubeID    string    `json:"youtube_id" gorm:"column:youtube_id;uniqueIndex;size:20;not null"`
	Title        string    `json:"title" gorm:"size:255"`
	Description  *string   `json:"description" gorm:"type:text"`
	ThumbnailURL string    `json:"thumbnail_url" gorm:"size:500"`
	PublishedAt  time.Time `json:"published_at" gorm:"index"`
	ChannelTitle string    `json:"channel_title" gorm:"size:255"`
	SearchQuery  *string   `json:"search_query" gorm:"size:255"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

// SavedVideo is a user's bookmark of a video with optional notes
type SavedVideo struct {
	ID      uint         `json:"id" gorm:"primaryKey"`
	UserID  uint         `json:"-" gorm:"uniqueIndex:idx_user_video;not null"`
	User    User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	VideoID uint         `json:"-" gorm:"uniqueIndex:idx_user_video;not null"`
	Video   YouTubeVideo `json:"video" gorm:"constraint:OnDelete:CASCADE"`
	SavedAt time.Time    `json:"saved_at" gorm:"autoCreateTime"`
	Notes   *string      `json:"notes" gorm:"type:text"`
}
