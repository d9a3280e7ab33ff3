package enum

type WorkerMode string

const (
	WorkerModeConnecting   WorkerMode = "connecting"
	WorkerModeIdle         WorkerMode = "idle"
	WorkerModePolling      WorkerMode = "polling"
	WorkerModeProcessing   WorkerMode = "processing"
	WorkerModeErrorBackoff WorkerMode = "error_backoff"
)

func (t WorkerMode) String() string {
	return string(t)
}

type MailSource string

const (
	MailSourceUserMailbox   MailSource = "user_mailbox"
	MailSourceGlobalMailbox MailSource = "global_mailbox"
)

func (t MailSource) String() string {
	return string(t)
}

type EmailSecurity string

const (
	EmailSecurityNone EmailSecurity = "none"
	EmailSecurityTLS  EmailSecurity = "tls"
)

func (t EmailSecurity) String() string {
	return string(t)
}
