package ghutil

import "strings"

const botMarker = "[bot]"

// IsBotName returns true if name contains "[bot]", case-insensitive.
// GitHub Apps commit and comment with names like "dependabot[bot]".
func IsBotName(name string) bool {
	return strings.Contains(strings.ToLower(name), botMarker)
}

// IsHumanAccount returns false if the account is of type "Bot" or its login
// is a bot name.
func IsHumanAccount(login, accountType string) bool {
	if strings.EqualFold(accountType, "Bot") {
		return false
	}

	return !IsBotName(login)
}
