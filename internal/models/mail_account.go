package models

// MailAccount is a mailbox on the remote mail provider. The configured login
// identity is the parent; disposable sub-accounts created under it are
// children.
type MailAccount struct {
	Email      string `yaml:"email" json:"email"`
	AccountID  *int64 `yaml:"accountId" json:"accountId"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Status     string `yaml:"status,omitempty" json:"status,omitempty"`
	CreateTime string `yaml:"createTime,omitempty" json:"createTime,omitempty"`
}

// MailCredentials is the persisted mail.yaml document: provider endpoint,
// login credentials and the last account snapshot.
type MailCredentials struct {
	BaseURL     string        `yaml:"baseUrl" json:"baseUrl"`
	Email       string        `yaml:"email" json:"email"`
	Password    string        `yaml:"password" json:"password"`
	Domain      string        `yaml:"domain" json:"domain"`
	Parent      *MailAccount  `yaml:"parent,omitempty" json:"parent,omitempty"`
	Children    []MailAccount `yaml:"children,omitempty" json:"children,omitempty"`
	SnapshotAt  string        `yaml:"snapshotAt,omitempty" json:"snapshotAt,omitempty"`
}

// AccountList is the parent/children partition of the provider account list.
type AccountList struct {
	Parent   *MailAccount  `json:"parent"`
	Children []MailAccount `json:"children"`
}

// EmailSummary is one entry of the provider email list response.
type EmailSummary struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Time    string `json:"time"`
	Content string `json:"content,omitempty"`
}

// EmailDetail is the single-email detail response body.
type EmailDetail struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Time    string `json:"time"`
	Content string `json:"content"`
}

// VerificationCode is the outcome of scanning an inbox for a code email.
type VerificationCode struct {
	Code    string `json:"code"`
	Time    string `json:"time"`
	Subject string `json:"subject"`
	From    string `json:"from"`
}
