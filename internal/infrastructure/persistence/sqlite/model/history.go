package model

type History struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CttIssue  uint64 `gorm:"column:cttissue;type:TEXT;not null;index"`
	Date      string `gorm:"column:date;type:TEXT;not null"`
	UpdatedBy string `gorm:"column:updatedby;type:TEXT;not null"`
	Info      string `gorm:"column:info;type:TEXT"`
}

func (History) TableName() string {
	return "history"
}
