package model

import (
	"strconv"
	"strings"
)

// Action tokens carried by buttons.
const (
	ActionPayMobile   = "pay:mpesa"
	ActionPayCrypto   = "pay:crypto"
	ActionPhoneYes    = "phone:yes"
	ActionPhoneEdit   = "phone:edit"
	ActionProofUpload = "proof:upload"
	ActionRetry       = "retry"
	ActionRestart     = "restart" // clear and show the catalog
	ActionCancel      = "cancel"  // clear and say goodbye
	ActionMenu        = "menu"

	servicePrefix = "svc:"
	optionPrefix  = "opt:"
)

// Typed reset commands.
const (
	CommandStart   = "/start"
	CommandRestart = "/restart"
	CommandCancel  = "/cancel"
	CommandMenu    = "/menu"
)

func ServiceAction(id int) string   { return servicePrefix + strconv.Itoa(id) }
func OptionAction(id string) string { return optionPrefix + id }

// ParseServiceAction extracts the service id from a "svc:<id>" token.
func ParseServiceAction(token string) (int, bool) {
	rest, ok := strings.CutPrefix(token, servicePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ParseOptionAction extracts the option id from an "opt:<id>" token.
func ParseOptionAction(token string) (string, bool) {
	rest, ok := strings.CutPrefix(token, optionPrefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// ResetCommand maps typed text to a reset action, if it is one.
func ResetCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	// "/start@MyBot" in groups
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	switch cmd {
	case CommandStart, CommandRestart, CommandMenu:
		return ActionRestart, true
	case CommandCancel:
		return ActionCancel, true
	}
	return "", false
}
