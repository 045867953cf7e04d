package model

type Comment struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CttIssue  uint64 `gorm:"column:cttissue;type:TEXT;not null;index"`
	Date      string `gorm:"column:date;type:TEXT;not null"`
	UpdatedBy string `gorm:"column:updatedby;type:TEXT;not null"`
	Comment   string `gorm:"column:comment;type:TEXT;not null"`
}

func (Comment) TableName() string {
	return "comments"
}
