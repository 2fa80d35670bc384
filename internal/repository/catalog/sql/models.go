package sql

type movieModel struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	Name       string `gorm:"type:varchar(255);not null"`
	OriginName string `gorm:"type:varchar(255)"`
	PosterURL  string `gorm:"column:poster_url;type:varchar(512)"`
}

func (movieModel) TableName() string {
	return "movies"
}

type episodeModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MovieID   string `gorm:"type:varchar(64);index;not null"`
	Slug      string `gorm:"type:varchar(128)"`
	Name      string `gorm:"type:varchar(255)"`
	Filename  string `gorm:"type:varchar(255)"`
	LinkEmbed string `gorm:"type:varchar(512)"`
	LinkM3U8  string `gorm:"column:link_m3u8;type:varchar(512)"`
}

func (episodeModel) TableName() string {
	return "episodes"
}
