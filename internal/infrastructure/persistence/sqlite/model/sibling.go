package model

type Sibling struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CttIssue uint64 `gorm:"column:cttissue;type:TEXT;not null;index"`
	Date     string `gorm:"column:date;type:TEXT;not null"`
	Status   string `gorm:"column:status;type:TEXT;not null;index:idx_siblings_node_status,priority:2"`
	Parent   string `gorm:"column:parent;type:TEXT;not null"`
	Sibling  string `gorm:"column:sibling;type:TEXT;not null;index:idx_siblings_node_status,priority:1"`
	State    string `gorm:"column:state;type:TEXT"`
}

func (Sibling) TableName() string {
	return "siblings"
}
