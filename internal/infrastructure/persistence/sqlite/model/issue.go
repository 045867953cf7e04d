package model

// Issue maps the legacy issues table; column names are kept as-is for existing databases.
type Issue struct {
	ID               uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	CttIssue         uint64 `gorm:"column:cttissue;type:TEXT;not null;uniqueIndex"`
	Date             string `gorm:"column:date;type:TEXT;not null"`
	Severity         int    `gorm:"column:severity;type:INT;not null"`
	Ticket           string `gorm:"column:ticket;type:TEXT"`
	Status           string `gorm:"column:status;type:TEXT;not null;index:idx_issues_host_status,priority:2"`
	Cluster          string `gorm:"column:cluster;type:TEXT;not null"`
	Hostname         string `gorm:"column:hostname;type:TEXT;not null;index:idx_issues_host_status,priority:1"`
	IssueTitle       string `gorm:"column:issuetitle;type:TEXT;not null"`
	IssueDescription string `gorm:"column:issuedescription;type:TEXT;not null"`
	AssignedTo       string `gorm:"column:assignedto;type:TEXT"`
	IssueOriginator  string `gorm:"column:issueoriginator;type:TEXT;not null"`
	UpdatedBy        string `gorm:"column:updatedby;type:TEXT;not null"`
	IssueType        string `gorm:"column:issuetype;type:TEXT;not null"`
	State            string `gorm:"column:state;type:TEXT"`
	UpdatedTime      string `gorm:"column:updatedtime;type:TEXT"`
	ViewTracker      string `gorm:"column:viewtracker;type:TEXT"`
}

func (Issue) TableName() string {
	return "issues"
}
