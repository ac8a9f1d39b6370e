package models

// SessionTokens is the complete set of session fields minted by one browser
// login. The set is atomic: either all four fields are present or the owning
// account is treated as token-less.
type SessionTokens struct {
	Csesidx    string `yaml:"csesidx" json:"csesidx"`
	HostCOses  string `yaml:"host_c_oses" json:"host_c_oses"`
	SecureCSes string `yaml:"secure_c_ses" json:"secure_c_ses"`
	TeamID     string `yaml:"team_id" json:"team_id"`
}

// Complete reports whether all four session fields are populated.
func (t *SessionTokens) Complete() bool {
	if t == nil {
		return false
	}
	return t.Csesidx != "" && t.HostCOses != "" && t.SecureCSes != "" && t.TeamID != ""
}

// GeminiAccount is one business-service account record from gemini.yaml.
type GeminiAccount struct {
	Email       string         `yaml:"email" json:"email"`
	AccountID   *int64         `yaml:"accountId" json:"accountId"`
	Tokens      *SessionTokens `yaml:"tokens,omitempty" json:"tokens,omitempty"`
	LastUpdated string         `yaml:"lastUpdated,omitempty" json:"lastUpdated,omitempty"`
	SkipReason  string         `yaml:"skipReason,omitempty" json:"skipReason,omitempty"`
	SkipTime    string         `yaml:"skipTime,omitempty" json:"skipTime,omitempty"`
}

// Syncable reports whether the account can be pushed to the remote pool.
func (a *GeminiAccount) Syncable() bool {
	return a.SkipReason == "" && a.Tokens.Complete()
}

// GeminiConfig is the persisted gemini.yaml document.
type GeminiConfig struct {
	Accounts      []GeminiAccount `yaml:"accounts"`
	PoolURL       string          `yaml:"poolUrl"`
	AdminPassword string          `yaml:"adminPassword"`
	UserAgent     string          `yaml:"userAgent,omitempty"`
}
