package seq

// Token is a group of units of one flavor held by one account, as returned
// by ListTokens.
type Token struct {
	FlavorID    string                 `json:"flavor_id"              yaml:"flavor_id"`
	FlavorTags  map[string]interface{} `json:"flavor_tags,omitempty"  yaml:"flavor_tags,omitempty"`
	AccountID   string                 `json:"account_id"             yaml:"account_id"`
	AccountTags map[string]interface{} `json:"account_tags,omitempty" yaml:"account_tags,omitempty"`
	Tags        map[string]interface{} `json:"tags,omitempty"         yaml:"tags,omitempty"`
	Amount      int64                  `json:"amount"                 yaml:"amount"`
}
