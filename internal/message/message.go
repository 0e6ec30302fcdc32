// Package message defines the closed catalog of user-facing conditions.
// Codes carry only a translation key; text resolution is entirely the
// host's job via Platform.Translate.
package message

import "github.com/nickuc/nlogin-addon/internal/platform"

type Code int

const (
	InvalidSignature Code = iota

	DownloadingData
	EncryptionFailed
	BackupInvalidPassword
	BackupCorrupted
	BackupMalformed

	RegisteringPassword
	SavingPassword
	RecommendLink

	HTTPInvalidRequest
	HTTPAlreadyLinked
	HTTPNoLinkedAccounts
	HTTPUnlinkTokenNotMatch
	HTTPLinkSuccess
	HTTPUnlinkSuccess
	HTTPLinkFailed

	SyncSuccess
	SyncFailed

	ResponseInvalidTokenOrEmail
	ResponseEncryptionPasswordRequired
	ResponseEncryptionPasswordInvalid
	ResponseCorruptedCompressedData
	ResponseMalformedData
	ResponseValid
	ResponseInvalidCredentials
	ResponsePermissionDenied
	ResponseTooManyRequests
)

var keys = map[Code]string{
	InvalidSignature: "autologin.invalidSignature",

	DownloadingData:       "backup.downloadingData",
	EncryptionFailed:      "backup.encryptionFailed",
	BackupInvalidPassword: "backup.invalidPassword",
	BackupCorrupted:       "backup.corrupted",
	BackupMalformed:       "backup.malformed",

	RegisteringPassword: "password.registering",
	SavingPassword:      "password.saving",
	RecommendLink:       "password.recommendLink",

	HTTPInvalidRequest:      "linking.http.invalidRequest",
	HTTPAlreadyLinked:       "linking.http.alreadyLinked",
	HTTPNoLinkedAccounts:    "linking.http.noLinkedAccounts",
	HTTPUnlinkTokenNotMatch: "linking.http.unlinkTokenNotMatch",
	HTTPLinkSuccess:         "linking.http.linkSuccess",
	HTTPUnlinkSuccess:       "linking.http.unlinkSuccess",
	HTTPLinkFailed:          "linking.http.linkFailed",

	SyncSuccess: "linking.notification.syncSuccess",
	SyncFailed:  "linking.notification.syncFailed",

	ResponseInvalidTokenOrEmail:        "linking.response.invalidTokenOrEmail",
	ResponseEncryptionPasswordRequired: "linking.response.encryptionPasswordRequired",
	ResponseEncryptionPasswordInvalid:  "linking.response.encryptionPasswordInvalid",
	ResponseCorruptedCompressedData:    "linking.response.corruptedCompressedData",
	ResponseMalformedData:              "linking.response.malformedData",
	ResponseValid:                      "linking.response.validResponse",
	ResponseInvalidCredentials:         "linking.response.invalidCredentials",
	ResponsePermissionDenied:           "linking.response.permissionDenied",
	ResponseTooManyRequests:            "linking.response.tooManyRequests",
}

// Key returns the translation key for the code.
func (c Code) Key() string {
	return keys[c]
}

// Text resolves the code to localized text via the host.
func (c Code) Text(p platform.Platform, params ...any) string {
	return p.Translate(c.Key(), params...)
}

// Display prints the resolved text in the local chat.
func (c Code) Display(p platform.Platform, params ...any) {
	p.DisplayMessage(c.Text(p, params...))
}

// Notify pops the resolved text as an on-screen notification.
func (c Code) Notify(p platform.Platform, params ...any) {
	p.ShowNotification(c.Text(p, params...))
}
