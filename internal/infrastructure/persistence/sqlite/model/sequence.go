package model

// Sequence holds the last allocated value of a counter such as the cttissue number.
type Sequence struct {
	Name  string `gorm:"column:name;type:text;primaryKey"`
	Value uint64 `gorm:"column:value;not null"`
}

func (Sequence) TableName() string {
	return "ctt_sequences"
}
