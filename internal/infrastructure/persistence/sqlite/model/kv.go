package model

type KV struct {
	Key       string `gorm:"column:key;type:text;primaryKey"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;type:text;not null"`
}

func (KV) TableName() string {
	return "ctt_kv"
}

// All lists every table ctt migrates.
func All() []any {
	return []any{
		&Issue{},
		&Sibling{},
		&Comment{},
		&History{},
		&Sequence{},
		&KV{},
	}
}
