package config

const allowSkipPasswordChangeVar = "ALLOW_SKIP_PASSWORD_CHANGE"

type Policy struct{}

var _ PolicyConfig = Policy{}

// GetAllowSkipPasswordChange defaults to true, matching the behaviour the
// backend has historically allowed. Set to "false" to always force the
// change.
func (Policy) GetAllowSkipPasswordChange() bool {
	return GetEnv(allowSkipPasswordChangeVar, "true") != "false"
}
