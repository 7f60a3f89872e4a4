package domain

// LogKind names a lifecycle transition published to audit consumers.
type LogKind string

const (
	LogOpen    LogKind = "open"
	LogClosed  LogKind = "closed"
	LogSuccess LogKind = "success"
	LogUnban   LogKind = "unban"
	LogDeny    LogKind = "deny"
)

// DenyReason explains an expected business rejection. These surface as
// user-visible notices, never as errors.
type DenyReason string

const (
	DenyBadMessage    DenyReason = "bad_message"    // structural pre-check failed
	DenyNoTeamName    DenyReason = "no_team_name"   // team name required but not extractable
	DenyNotEnoughTags DenyReason = "not_enough_tags"
	DenyDuplicateName DenyReason = "duplicate_name"
	DenyMultiRegister DenyReason = "multi_register"
	DenyBanned        DenyReason = "banned"
	DenyFull          DenyReason = "full"
)
